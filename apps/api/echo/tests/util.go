package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/blockward/blockward/apps/api/echo"
	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/award"
	"github.com/blockward/blockward/core/user"
	appfs "github.com/blockward/blockward/fs"
	emailsvc "github.com/blockward/blockward/services/email"
	dummydb "github.com/blockward/blockward/storage/database/dummy"
)

var (
	testConf = core.NewTestConfig()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testEnv struct {
	app      Server
	usrRepo  user.Repository
	awdRepo  award.Repository
	usrSvc   user.Service
	awardSvc award.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	logger := core.NewNopLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(testConf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	award.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, logger)

	env := &testEnv{
		usrRepo: dummydb.NewUserRepository(db),
		awdRepo: dummydb.NewAwardRepository(db),
	}
	env.usrSvc = user.NewServiceMock(env.usrRepo, mailSvc, testConf, logger)
	env.awardSvc = award.NewService(env.awdRepo, env.usrSvc, mailSvc, testConf, logger, validate)

	env.app = NewServer(
		ServerDeps{
			Conf:       testConf,
			Logger:     logger,
			UserSvc:    env.usrSvc,
			AwardSvc:   env.awardSvc,
			Validate:   validate,
			Translator: translator,
		},
	)
	return env
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (env *testEnv) createUser(t *testing.T, name, uname, email, pwd string, roles []string, canIssue bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CanIssue:  canIssue,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword(): %v", err)
		}
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func (env *testEnv) createCategory(t *testing.T, name string, pol award.Polarity, magnitude int) award.Category {
	t.Helper()

	now := time.Now().UTC()
	cat, err := env.awdRepo.CreateCategory(context.Background(), award.Category{
		ID:        uuid.New().String(),
		Name:      name,
		Polarity:  pol,
		Magnitude: magnitude,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCategory(): %v", err)
	}
	return cat
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(testConf, usr)
	token, err := GenerateToken(testConf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
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
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
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

func checkCode(t *testing.T, wantCode int, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
}
