package list

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_Columns(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   [3]bool
	}{
		{name: "student", target: StudentTarget("s1"), want: [3]bool{true, false, false}},
		{name: "behavior log", target: BehaviorLogTarget("b1"), want: [3]bool{false, true, false}},
		{name: "academic log", target: AcademicLogTarget("a1"), want: [3]bool{false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, b, a := tt.target.Columns()
			assert.Equal(t, tt.want, [3]bool{s != nil, b != nil, a != nil})

			back, err := TargetFromColumns(s, b, a)
			require.NoError(t, err)
			assert.Equal(t, tt.target, back)
		})
	}
}

func TestTargetFromColumns_exactlyOne(t *testing.T) {
	id := "x"
	_, err := TargetFromColumns(nil, nil, nil)
	assert.Error(t, err)
	_, err = TargetFromColumns(&id, &id, nil)
	assert.Error(t, err)
	_, err = TargetFromColumns(&id, &id, &id)
	assert.Error(t, err)
}

func TestNewTarget(t *testing.T) {
	_, err := NewTarget("course", "c1")
	assert.EqualError(t, err, `unknown target kind "course"`)
	_, err = NewTarget(TypeStudent, "")
	assert.EqualError(t, err, "missing student target id")

	tgt, err := NewTarget(TypeAcademicLog, "a1")
	require.NoError(t, err)
	assert.Equal(t, TypeAcademicLog, tgt.Kind())
	assert.Equal(t, "a1", tgt.ID())
}

func TestTarget_JSON(t *testing.T) {
	data, err := json.Marshal(NewItem{Target: BehaviorLogTarget("b1")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":{"kind":"behavior_log","id":"b1"},"note":""}`, string(data))

	var ni NewItem
	require.NoError(t, json.Unmarshal([]byte(`{"target":{"kind":"student","id":"s1"}}`), &ni))
	assert.Equal(t, StudentTarget("s1"), ni.Target)

	err = json.Unmarshal([]byte(`{"target":{"kind":"teacher","id":"t1"}}`), &ni)
	assert.Error(t, err)
}
