package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kumbukumbu/apps/api/echo"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/student"
	"github.com/trezcool/kumbukumbu/core/task"
	"github.com/trezcool/kumbukumbu/core/user"
	"github.com/trezcool/kumbukumbu/services/changefeed"
	testutil "github.com/trezcool/kumbukumbu/tests"
)

type tenants struct {
	env
	owner, stranger, colleague user.User
	orgA, orgB                 org.Organization
	ownerToken                 string
	strangerToken              string
	colleagueToken             string
}

// setupTenants creates two organizations: A (owner & colleague) and B (stranger).
func setupTenants(t *testing.T) tenants {
	e := setup(t)
	tt := tenants{env: e}
	tt.owner = testutil.CreateUser(t, e.usrRepo, "Owner", "owner@test.cd", pwd)
	tt.colleague = testutil.CreateUser(t, e.usrRepo, "Colleague", "colleague@test.cd", pwd)
	tt.stranger = testutil.CreateUser(t, e.usrRepo, "Stranger", "stranger@test.cd", pwd)
	tt.orgA = testutil.CreateOrganization(t, e.db, "A", tt.owner)
	tt.orgB = testutil.CreateOrganization(t, e.db, "B", tt.stranger)
	testutil.AddMember(t, e.db, tt.orgA, tt.colleague, org.RoleMember)
	tt.ownerToken = getToken(t, e.conf, tt.owner)
	tt.strangerToken = getToken(t, e.conf, tt.stranger)
	tt.colleagueToken = getToken(t, e.conf, tt.colleague)
	return tt
}

func (tt tenants) path(o org.Organization, segments ...string) string {
	p := "/v1/organizations/" + o.ID
	for _, s := range segments {
		p += "/" + s
	}
	return p
}

func (tt tenants) createStudent(t *testing.T, name string) student.Student {
	t.Helper()
	rec := tt.do(t, http.MethodPost, tt.path(tt.orgA, student.Kind), tt.ownerToken, marchallObj(t, student.NewStudent{Name: name}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s student.Student
	unmarshalBody(t, rec, &s)
	return s
}

func Test_resourceApi_students(t *testing.T) {
	tt := setupTenants(t)

	ana := tt.createStudent(t, "Ana")
	assert.Equal(t, tt.orgA.ID, ana.OrganizationID)
	tt.createStudent(t, "Bob")

	rec := tt.do(t, http.MethodGet, tt.path(tt.orgA, student.Kind), tt.colleagueToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var studs []student.Student
	unmarshalBody(t, rec, &studs)
	require.Len(t, studs, 2)
	assert.Equal(t, "Ana", studs[0].Name)

	rec = tt.do(t, http.MethodPatch, tt.path(tt.orgA, student.Kind, ana.ID), tt.colleagueToken, []byte(`{"notes": "likes maths"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated student.Student
	unmarshalBody(t, rec, &updated)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "likes maths", updated.Notes)

	rec = tt.do(t, http.MethodDelete, tt.path(tt.orgA, student.Kind, ana.ID), tt.ownerToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	tt.run(t, []httpTest{
		{name: "deleted", path: tt.path(tt.orgA, student.Kind, ana.ID), token: tt.ownerToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found", Code: "not_found"})},
		{name: "blank name", method: http.MethodPost, path: tt.path(tt.orgA, student.Kind), token: tt.ownerToken, body: []byte(`{"name": "   "}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: map[string]string{"name": "this field is required"}, Code: "validation"})},
		{name: "malformed body", method: http.MethodPost, path: tt.path(tt.orgA, student.Kind), token: tt.ownerToken, body: []byte(`{"name": `), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid request body", Code: "validation"})},
	})

	t.Run("changes are published", func(t *testing.T) {
		changes := tt.changes.all()
		require.Len(t, changes, 4)
		assert.Equal(t, changefeed.OpCreated, changes[0].Op)
		assert.Equal(t, []string{tt.orgA.ID, student.Kind}, changes[0].Key)
		assert.Equal(t, ana.ID, changes[0].ID)
		assert.Equal(t, tt.owner.ID, changes[0].ActorID)
		assert.Equal(t, changefeed.OpUpdated, changes[2].Op)
		assert.Equal(t, tt.colleague.ID, changes[2].ActorID)
		assert.Equal(t, changefeed.OpDeleted, changes[3].Op)
	})
}

// A member of another organization gets nothing out of it.
func Test_resourceApi_tenantIsolation(t *testing.T) {
	tt := setupTenants(t)
	ana := tt.createStudent(t, "Ana")

	denied := marchallObj(t, httpErr{Error: "permission denied", Code: "access_denied"})
	tt.run(t, []httpTest{
		{name: "query", path: tt.path(tt.orgA, student.Kind), token: tt.strangerToken, wantCode: http.StatusForbidden, wantData: denied},
		{name: "retrieve", path: tt.path(tt.orgA, student.Kind, ana.ID), token: tt.strangerToken, wantCode: http.StatusForbidden, wantData: denied},
		{name: "create", method: http.MethodPost, path: tt.path(tt.orgA, task.Kind), token: tt.strangerToken, body: []byte(`{"title": "spy"}`), wantCode: http.StatusForbidden, wantData: denied},
		{name: "nested", path: tt.path(tt.orgA, student.Kind, ana.ID, behavior.LogKind), token: tt.strangerToken, wantCode: http.StatusForbidden, wantData: denied},
		{name: "summary", method: http.MethodPost, path: tt.path(tt.orgA, student.Kind, ana.ID, "summary"), token: tt.strangerToken, wantCode: http.StatusForbidden, wantData: denied},
		// reaching A's student through B
		{name: "other organization", path: tt.path(tt.orgB, student.Kind, ana.ID), token: tt.strangerToken, wantCode: http.StatusNotFound},
	})
}

func Test_resourceApi_categoryInUse(t *testing.T) {
	tt := setupTenants(t)
	ana := tt.createStudent(t, "Ana")

	rec := tt.do(t, http.MethodPost, tt.path(tt.orgA, behavior.CategoryKind), tt.ownerToken, []byte(`{"name": "Participation"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat behavior.Category
	unmarshalBody(t, rec, &cat)

	logsPath := tt.path(tt.orgA, student.Kind, ana.ID, behavior.LogKind)
	rec = tt.do(t, http.MethodPost, logsPath, tt.ownerToken, marchallObj(t, behavior.NewLog{CategoryID: cat.ID, Note: "Asked great questions"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tt.run(t, []httpTest{
		{
			name: "delete restricted", method: http.MethodDelete, path: tt.path(tt.orgA, behavior.CategoryKind, cat.ID), token: tt.ownerToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: behavior.ErrCategoryInUse.Error(), Code: "conflict"}),
		},
		{name: "category stays", path: tt.path(tt.orgA, behavior.CategoryKind, cat.ID), token: tt.ownerToken, wantCode: http.StatusOK, wantData: marchallObj(t, cat)},
		{
			name: "duplicate name", method: http.MethodPost, path: tt.path(tt.orgA, behavior.CategoryKind), token: tt.ownerToken, body: []byte(`{"name": "Participation"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: behavior.ErrCategoryExists.Error(), Code: "conflict"}),
		},
	})

	rec = tt.do(t, http.MethodGet, logsPath, tt.ownerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []behavior.Log
	unmarshalBody(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, ana.ID, logs[0].StudentID)

	t.Run("nested change key", func(t *testing.T) {
		changes := tt.changes.all()
		last := changes[len(changes)-1]
		assert.Equal(t, []string{tt.orgA.ID, student.Kind, ana.ID, behavior.LogKind}, last.Key)
	})
}

func Test_resourceApi_lists(t *testing.T) {
	tt := setupTenants(t)
	ana := tt.createStudent(t, "Ana")

	rec := tt.do(t, http.MethodPost, tt.path(tt.orgA, list.Kind), tt.ownerToken, []byte(`{"name": "Needs follow-up", "type": "student"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var l list.List
	unmarshalBody(t, rec, &l)
	assert.Equal(t, tt.owner.ID, l.OwnerID)

	itemsPath := tt.path(tt.orgA, list.Kind, l.ID, list.ItemKind)
	studentItem := fmt.Sprintf(`{"target": {"kind": "student", "id": %q}}`, ana.ID)
	rec = tt.do(t, http.MethodPost, itemsPath, tt.ownerToken, []byte(studentItem))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tt.run(t, []httpTest{
		{
			name: "duplicate item", method: http.MethodPost, path: itemsPath, token: tt.ownerToken, body: []byte(studentItem),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: list.ErrDuplicateItem.Error(), Code: "conflict"}),
		},
		{
			name: "wrong kind", method: http.MethodPost, path: itemsPath, token: tt.ownerToken,
			body:     []byte(fmt.Sprintf(`{"target": {"kind": "academic_log", "id": %q}}`, ana.ID)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: map[string]string{"target": "this list only accepts student entries"}, Code: "validation"}),
		},
		{
			name: "missing target", method: http.MethodPost, path: itemsPath, token: tt.ownerToken, body: []byte(`{"note": "who?"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: map[string]string{"target": "this field is required"}, Code: "validation"}),
		},
		{
			name: "unknown list type", method: http.MethodPost, path: tt.path(tt.orgA, list.Kind), token: tt.ownerToken,
			body:     []byte(`{"name": "Odd", "type": "teacher"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: map[string]string{"type": "must be one of: student, behavior_log, academic_log"}, Code: "validation"}),
		},
		{name: "hidden from colleague", path: tt.path(tt.orgA, list.Kind, l.ID), token: tt.colleagueToken, wantCode: http.StatusNotFound},
	})

	// share with the colleague
	sharesPath := tt.path(tt.orgA, list.Kind, l.ID, list.ShareKind)
	rec = tt.do(t, http.MethodPost, sharesPath, tt.ownerToken, []byte(`{"email": "colleague@test.cd"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sent := tt.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "colleague@test.cd", sent[0].To[0].Address)

	rec = tt.do(t, http.MethodGet, itemsPath, tt.colleagueToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items []list.Item
	unmarshalBody(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, list.StudentTarget(ana.ID), items[0].Target)

	tt.run(t, []httpTest{
		{name: "grantees cannot rename", method: http.MethodPatch, path: tt.path(tt.orgA, list.Kind, l.ID), token: tt.colleagueToken, body: []byte(`{"name": "Mine"}`), wantCode: http.StatusForbidden},
		{name: "grantees cannot share", path: sharesPath, token: tt.colleagueToken, wantCode: http.StatusForbidden},
		{
			name: "already shared", method: http.MethodPost, path: sharesPath, token: tt.ownerToken, body: []byte(`{"email": "colleague@test.cd"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: list.ErrAlreadyShared.Error(), Code: "conflict"}),
		},
		{
			name: "not a member", method: http.MethodPost, path: sharesPath, token: tt.ownerToken, body: []byte(`{"email": "stranger@test.cd"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: map[string]string{"email": "user is not a member of this organization"}, Code: "validation"}),
		},
	})

	rec = tt.do(t, http.MethodDelete, sharesPath+"/"+tt.colleague.ID, tt.ownerToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = tt.do(t, http.MethodGet, itemsPath, tt.colleagueToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_summaryApi(t *testing.T) {
	tt := setupTenants(t)
	ana := tt.createStudent(t, "Ana")

	rec := tt.do(t, http.MethodPost, tt.path(tt.orgA, student.Kind, ana.ID, "academic-logs"), tt.ownerToken, []byte(`{"subject": "Maths", "note": "Top of the class"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = tt.do(t, http.MethodPost, tt.path(tt.orgA, student.Kind, ana.ID, "summary"), tt.colleagueToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res SummaryResponse
	unmarshalBody(t, rec, &res)
	assert.Equal(t, ana.ID, res.StudentID)
	assert.Equal(t, "Summary unavailable offline: 1 observation(s) recorded.", res.Summary)
}
