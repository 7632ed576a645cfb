package list

import (
	"encoding/json"
	"fmt"
)

// Type is the kind of entity a List collects.
type Type string

const (
	TypeStudent     Type = "student"
	TypeBehaviorLog Type = "behavior_log"
	TypeAcademicLog Type = "academic_log"
)

var Types = []Type{TypeStudent, TypeBehaviorLog, TypeAcademicLog}

func (t Type) Choices() []string {
	out := make([]string, 0, len(Types))
	for _, typ := range Types {
		out = append(out, string(typ))
	}
	return out
}

func (t Type) Valid() bool {
	switch t {
	case TypeStudent, TypeBehaviorLog, TypeAcademicLog:
		return true
	}
	return false
}

// Target is what a list item points at: exactly one entity of one kind.
// The zero Target is invalid; build one with StudentTarget, BehaviorLogTarget, AcademicLogTarget or NewTarget.
type Target struct {
	kind Type
	id   string
}

func StudentTarget(id string) Target     { return Target{kind: TypeStudent, id: id} }
func BehaviorLogTarget(id string) Target { return Target{kind: TypeBehaviorLog, id: id} }
func AcademicLogTarget(id string) Target { return Target{kind: TypeAcademicLog, id: id} }

// NewTarget builds a Target from its parts.
func NewTarget(kind Type, id string) (Target, error) {
	if !kind.Valid() {
		return Target{}, fmt.Errorf("unknown target kind %q", kind)
	}
	if id == "" {
		return Target{}, fmt.Errorf("missing %s target id", kind)
	}
	return Target{kind: kind, id: id}, nil
}

func (t Target) Kind() Type     { return t.kind }
func (t Target) ID() string     { return t.id }
func (t Target) IsZero() bool   { return t.kind == "" && t.id == "" }
func (t Target) String() string { return string(t.kind) + ":" + t.id }

// VariantTag makes a Target a core.Variant: payloads holding an unset Target fail validation.
func (t Target) VariantTag() string { return string(t.kind) }

// Columns returns the (student, behavior log, academic log) foreign keys of t.
// Exactly one of them is set.
func (t Target) Columns() (studentID, behaviorLogID, academicLogID *string) {
	id := t.id
	switch t.kind {
	case TypeStudent:
		studentID = &id
	case TypeBehaviorLog:
		behaviorLogID = &id
	case TypeAcademicLog:
		academicLogID = &id
	}
	return
}

// TargetFromColumns is the inverse of Columns.
func TargetFromColumns(studentID, behaviorLogID, academicLogID *string) (Target, error) {
	var (
		set int
		t   Target
	)
	if studentID != nil {
		set++
		t = StudentTarget(*studentID)
	}
	if behaviorLogID != nil {
		set++
		t = BehaviorLogTarget(*behaviorLogID)
	}
	if academicLogID != nil {
		set++
		t = AcademicLogTarget(*academicLogID)
	}
	if set != 1 {
		return Target{}, fmt.Errorf("list item must reference exactly one entity, got %d", set)
	}
	return t, nil
}

type targetJSON struct {
	Kind Type   `json:"kind"`
	ID   string `json:"id"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Kind: t.kind, ID: t.id})
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var raw targetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nt, err := NewTarget(raw.Kind, raw.ID)
	if err != nil {
		return err
	}
	*t = nt
	return nil
}
