package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/blockward/blockward/core/user"
)

func TestUserLogin(t *testing.T) {
	env := setup(t)

	usr := env.createUser(t, "Student", "stud", "stud@test.cd", "PassW0rd!", user.StudentRoles, false)

	deactivated := env.createUser(t, "Gone", "gone", "gone@test.cd", "PassW0rd!", user.StudentRoles, false)
	deactivated.SetActive(false)
	isActive := false
	if _, err := env.usrRepo.UpdateUser(context.Background(), deactivated, &isActive, nil); err != nil {
		t.Fatalf("UpdateUser(): %v", err)
	}

	tests := []httpTest{
		{
			name: "empty body", wantCode: http.StatusBadRequest,
			body: []byte(`{}`),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     []byte(`{"username": "lol", "password": "lol"}`),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     []byte(fmt.Sprintf(`{"username": %q, "password": "nope"}`, usr.Username)),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     []byte(fmt.Sprintf(`{"username": %q, "password": "PassW0rd!"}`, deactivated.Username)),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", wantCode: http.StatusOK,
			body: []byte(fmt.Sprintf(`{"username": %q, "password": "PassW0rd!"}`, usr.Username)),
		},
		{
			name: "login with email", wantCode: http.StatusOK,
			body: []byte(fmt.Sprintf(`{"username": %q, "password": "PassW0rd!"}`, usr.Email)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				checkCode(t, tt.wantCode, rec)
			}
		})
	}
}

func TestUserQuery(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "PassW0rd!", user.AdminRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "PassW0rd!", user.StudentRoles, false)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", token: getToken(t, student), wantCode: http.StatusForbidden},
		{name: "admin ok", token: getToken(t, admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				checkCode(t, tt.wantCode, rec)
			}
		})
	}
}

func TestUserRegister(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "PassW0rd!", user.AdminRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "PassW0rd!", user.StudentRoles, false)

	tests := []httpTest{
		{
			name: "auth required", wantCode: http.StatusUnauthorized,
			body: []byte(`{}`),
		},
		{
			name: "admin required", token: getToken(t, student), wantCode: http.StatusForbidden,
			body: []byte(`{}`),
		},
		{
			name: "validation errors", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body: []byte(`{}`),
		},
		{
			name: "duplicate email", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body: []byte(`{"name": "Dup", "username": "studlol", "email": "stud@test.cd", "password": "NewPassW0rd!", "password_confirm": "NewPassW0rd!", "roles": ["student:"]}`),
		},
		{
			name: "created", token: getToken(t, admin), wantCode: http.StatusCreated,
			body: []byte(`{"name": "New Student", "username": "newstud", "email": "newstud@test.cd", "password": "NewPassW0rd!", "password_confirm": "NewPassW0rd!", "roles": ["student:"], "grade_level": "5"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCode(t, tt.wantCode, rec)
		})
	}
}

func TestUserRetrieve(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "PassW0rd!", user.AdminRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "PassW0rd!", user.StudentRoles, false)
	other := env.createUser(t, "Other", "other", "other@test.cd", "PassW0rd!", user.StudentRoles, false)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/" + student.ID, wantCode: http.StatusUnauthorized},
		{name: "own detail", path: "/v1/users/" + student.ID, token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{name: "admin can see any", path: "/v1/users/" + student.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{name: "others hidden", path: "/v1/users/" + other.ID, token: getToken(t, student), wantCode: http.StatusNotFound},
		{name: "unknown user", path: "/v1/users/lol", token: getToken(t, admin), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				checkCode(t, tt.wantCode, rec)
			}
		})
	}
}

func TestUserPasswordReset(t *testing.T) {
	env := setup(t)

	env.createUser(t, "Student", "stud", "stud@test.cd", "PassW0rd!", user.StudentRoles, false)

	tests := []httpTest{
		{name: "invalid email", body: []byte(`{"email": "lol"}`), wantCode: http.StatusBadRequest},
		// an unknown email is not revealed to attackers
		{name: "unknown email", body: []byte(`{"email": "lol@test.cd"}`), wantCode: http.StatusOK},
		{name: "known email", body: []byte(`{"email": "stud@test.cd"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCode(t, tt.wantCode, rec)
		})
	}
}

func TestUserQueryRoles(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "PassW0rd!", user.AdminRoles, false)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	env.app.ServeHTTP(rec, req)

	tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}
	checkCodeAndData(t, tt, rec)
}
