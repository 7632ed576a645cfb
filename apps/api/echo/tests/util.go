package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/kumbukumbu/apps/api/echo"
	"github.com/trezcool/kumbukumbu/apps/shared"
	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/academic"
	"github.com/trezcool/kumbukumbu/core/access"
	"github.com/trezcool/kumbukumbu/core/assist"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/list"
	"github.com/trezcool/kumbukumbu/core/org"
	"github.com/trezcool/kumbukumbu/core/student"
	"github.com/trezcool/kumbukumbu/core/task"
	"github.com/trezcool/kumbukumbu/core/user"
	emailsvc "github.com/trezcool/kumbukumbu/services/email"
	"github.com/trezcool/kumbukumbu/services/changefeed"
	"github.com/trezcool/kumbukumbu/storage/database/sqlxdb"
	testutil "github.com/trezcool/kumbukumbu/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app     Server
	conf    *core.Config
	db      *sqlx.DB
	usrRepo *sqlxdb.UserRepository
	mailSvc *emailsvc.ConsoleServiceMock
	changes *changeRecorder
}

// changeRecorder keeps every change published on the bus.
type changeRecorder struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func (r *changeRecorder) record(c changefeed.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []changefeed.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]changefeed.Change(nil), r.changes...)
}

func setup(t *testing.T) env {
	t.Helper()
	conf := core.NewTestConfig()
	translator := shared.NewTranslator()
	validate := shared.NewValidator(translator)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxdb.NewUserRepository(db)
	orgRepo := sqlxdb.NewOrganizationRepository(db)
	studRepo := sqlxdb.NewStudentRepository(db)
	behavRepo := sqlxdb.NewBehaviorRepository(db)
	listRepo := sqlxdb.NewListRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo)
	bus := changefeed.NewMemoryBus()
	rec := new(changeRecorder)
	if err := bus.Subscribe(t.Context(), rec.record); err != nil {
		t.Fatalf("bus.Subscribe() failed: %v", err)
	}

	// set up server
	app := NewServer(
		&Options{
			Conf:           conf,
			Translator:     translator,
			Validate:       validate,
			DisableReqLogs: true,
			Guard:          access.NewGuard(),
			UserSvc:        usrSvc,
			ResetSvc:       user.NewPasswordResetService(conf, usrSvc, mailSvc),
			OrgSvc:         org.NewService(orgRepo),
			StudentSvc:     student.NewService(studRepo),
			CategorySvc:    behavior.NewCategoryService(behavRepo),
			BehaviorSvc:    behavior.NewLogService(behavRepo, behavRepo, studRepo),
			AcademicSvc:    academic.NewService(sqlxdb.NewAcademicRepository(db), studRepo),
			TaskSvc:        task.NewService(sqlxdb.NewTaskRepository(db), studRepo),
			ListSvc:        list.NewService(listRepo),
			ListItemSvc:    list.NewItemService(listRepo),
			ListShareSvc:   list.NewShareService(listRepo, orgRepo, usrSvc, mailSvc),
			Completer:      assist.Console{},
			Bus:            bus,
		},
		nil, /* shutdown */
	)
	return env{app: app, conf: conf, db: db, usrRepo: usrRepo, mailSvc: mailSvc, changes: rec}
}

type httpErr struct {
	Error interface{} `json:"error"`
	Code  string      `json:"code,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (e env) do(t *testing.T, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e env) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := e.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshalBody() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
