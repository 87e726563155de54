package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/blockward/blockward/core/award"
	"github.com/blockward/blockward/core/user"
)

func TestAwardIssue(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, false)
	teacher := env.createUser(t, "Teacher", "teach", "teach@test.cd", "", user.TeacherRoles, true)
	teacherLow := env.createUser(t, "Teacher NoIssue", "teach2", "teach2@test.cd", "", user.TeacherRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "", user.StudentRoles, false)
	cat := env.createCategory(t, "Helpfulness", award.PolarityAchievement, 5)

	body := func(holderID, categoryID, title string) []byte {
		return []byte(fmt.Sprintf(`{"holder_id": %q, "category_id": %q, "title": %q}`, holderID, categoryID, title))
	}

	tests := []httpTest{
		{
			name: "auth required", wantCode: http.StatusUnauthorized,
			body: body(student.ID, cat.ID, "Helped out"),
		},
		{
			name: "students cannot issue", token: getToken(t, student), wantCode: http.StatusForbidden,
			body: body(student.ID, cat.ID, "Helped out"),
		},
		{
			name: "teacher without can_issue", token: getToken(t, teacherLow), wantCode: http.StatusForbidden,
			body: body(student.ID, cat.ID, "Helped out"),
		},
		{
			name: "unknown holder", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body: body("lol", cat.ID, "Helped out"),
		},
		{
			name: "holder must be a student", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body: body(teacher.ID, cat.ID, "Helped out"),
		},
		{
			name: "unknown category", token: getToken(t, admin), wantCode: http.StatusNotFound,
			body: body(student.ID, "lol", "Helped out"),
		},
		{
			name: "missing title", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body: body(student.ID, cat.ID, ""),
		},
		{
			name: "admin issues", token: getToken(t, admin), wantCode: http.StatusCreated,
			body: body(student.ID, cat.ID, "Helped out"),
		},
		{
			name: "teacher with can_issue issues", token: getToken(t, teacher), wantCode: http.StatusCreated,
			body: body(student.ID, cat.ID, "Great work"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/awards", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCode(t, tt.wantCode, rec)

			if tt.wantCode == http.StatusCreated {
				var cred award.Credential
				if err := json.Unmarshal(rec.Body.Bytes(), &cred); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if cred.Status != award.StatusActive {
					t.Errorf("status = %q; want %q", cred.Status, award.StatusActive)
				}
				if cred.HolderID != student.ID {
					t.Errorf("holderID = %q; want %q", cred.HolderID, student.ID)
				}
			}
		})
	}
}

func TestAwardQueryScoping(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "", user.StudentRoles, false)
	student2 := env.createUser(t, "Student Two", "stud2", "stud2@test.cd", "", user.StudentRoles, false)
	cat := env.createCategory(t, "Helpfulness", award.PolarityAchievement, 5)

	ctx := context.Background()
	for _, holder := range []user.User{student, student, student2} {
		if _, err := env.awardSvc.Issue(ctx, admin, award.NewCredential{
			HolderID: holder.ID, CategoryID: cat.ID, Title: "Well done",
		}); err != nil {
			t.Fatalf("Issue(): %v", err)
		}
	}

	tests := []struct {
		name      string
		token     string
		path      string
		wantCount int
	}{
		{name: "admin sees all", token: getToken(t, admin), path: "/v1/awards", wantCount: 3},
		{name: "admin filters by holder", token: getToken(t, admin), path: "/v1/awards?holder=" + student2.ID, wantCount: 1},
		{name: "student sees own only", token: getToken(t, student), path: "/v1/awards", wantCount: 2},
		{name: "student cannot filter to others", token: getToken(t, student), path: "/v1/awards?holder=" + student2.ID, wantCount: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCode(t, http.StatusOK, rec)

			var creds []award.Credential
			if err := json.Unmarshal(rec.Body.Bytes(), &creds); err != nil {
				t.Fatalf("unmarshalling response: %v", err)
			}
			if len(creds) != tt.wantCount {
				t.Errorf("len(creds) = %d; want %d", len(creds), tt.wantCount)
			}
		})
	}
}

func TestAwardRevoke(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, false)
	teacher := env.createUser(t, "Teacher", "teach", "teach@test.cd", "", user.TeacherRoles, true)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "", user.StudentRoles, false)
	cat := env.createCategory(t, "Helpfulness", award.PolarityAchievement, 5)

	cred, err := env.awardSvc.Issue(context.Background(), admin, award.NewCredential{
		HolderID: student.ID, CategoryID: cat.ID, Title: "Well done",
	})
	if err != nil {
		t.Fatalf("Issue(): %v", err)
	}

	reason := []byte(`{"reason": "issued in error"}`)

	tests := []httpTest{
		{name: "auth required", path: "/v1/awards/" + cred.ID + "/revoke", body: reason, wantCode: http.StatusUnauthorized},
		{name: "students cannot revoke", path: "/v1/awards/" + cred.ID + "/revoke", body: reason, token: getToken(t, student), wantCode: http.StatusForbidden},
		{name: "teachers cannot revoke", path: "/v1/awards/" + cred.ID + "/revoke", body: reason, token: getToken(t, teacher), wantCode: http.StatusForbidden},
		{name: "unknown credential", path: "/v1/awards/lol/revoke", body: reason, token: getToken(t, admin), wantCode: http.StatusNotFound},
		{name: "missing reason", path: "/v1/awards/" + cred.ID + "/revoke", body: []byte(`{}`), token: getToken(t, admin), wantCode: http.StatusBadRequest},
		{name: "admin revokes", path: "/v1/awards/" + cred.ID + "/revoke", body: reason, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "second revoke conflicts", path: "/v1/awards/" + cred.ID + "/revoke", body: reason, token: getToken(t, admin), wantCode: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCode(t, tt.wantCode, rec)
		})
	}
}

func TestAwardCategories(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, false)
	teacher := env.createUser(t, "Teacher", "teach", "teach@test.cd", "", user.TeacherRoles, true)
	cat := env.createCategory(t, "Helpfulness", award.PolarityAchievement, 5)

	tests := []httpTest{
		{
			name: "query requires auth", method: http.MethodGet, path: "/v1/awards/categories",
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "anyone authed can query", method: http.MethodGet, path: "/v1/awards/categories",
			token: getToken(t, teacher), wantCode: http.StatusOK,
		},
		{
			name: "create is admin-only", method: http.MethodPost, path: "/v1/awards/categories",
			body:  []byte(`{"name": "Respect", "polarity": "achievement", "magnitude": 2}`),
			token: getToken(t, teacher), wantCode: http.StatusForbidden,
		},
		{
			name: "create", method: http.MethodPost, path: "/v1/awards/categories",
			body:  []byte(`{"name": "Respect", "polarity": "achievement", "magnitude": 2}`),
			token: getToken(t, admin), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/awards/categories",
			body:  []byte(`{"name": "Respect", "polarity": "achievement", "magnitude": 2}`),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "bad polarity", method: http.MethodPost, path: "/v1/awards/categories",
			body:  []byte(`{"name": "Meh", "polarity": "meh", "magnitude": 2}`),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "retrieve", method: http.MethodGet, path: "/v1/awards/categories/" + cat.ID,
			token: getToken(t, teacher), wantCode: http.StatusOK,
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/awards/categories/" + cat.ID,
			body:  []byte(`{"magnitude": 7}`),
			token: getToken(t, admin), wantCode: http.StatusOK,
		},
		{
			name: "destroy is admin-only", method: http.MethodDelete, path: "/v1/awards/categories/" + cat.ID,
			token: getToken(t, teacher), wantCode: http.StatusForbidden,
		},
		{
			name: "destroy", method: http.MethodDelete, path: "/v1/awards/categories/" + cat.ID,
			token: getToken(t, admin), wantCode: http.StatusNoContent,
		},
		{
			name: "retrieve after destroy", method: http.MethodGet, path: "/v1/awards/categories/" + cat.ID,
			token: getToken(t, teacher), wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCode(t, tt.wantCode, rec)
		})
	}
}

func TestPointsEndpoints(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, false)
	teacherLow := env.createUser(t, "Teacher NoIssue", "teach2", "teach2@test.cd", "", user.TeacherRoles, false)
	student := env.createUser(t, "Student", "stud", "stud@test.cd", "", user.StudentRoles, false)
	student2 := env.createUser(t, "Student Two", "stud2", "stud2@test.cd", "", user.StudentRoles, false)
	achievement := env.createCategory(t, "Helpfulness", award.PolarityAchievement, 5)
	behaviour := env.createCategory(t, "Tardiness", award.PolarityBehaviour, 3)

	body := func(holderID, categoryID, reason string) []byte {
		return []byte(fmt.Sprintf(`{"holder_id": %q, "category_id": %q, "reason": %q}`, holderID, categoryID, reason))
	}

	// students cannot award points
	req, rec := newAuthRequest(http.MethodPost, "/v1/points", getToken(t, student), body(student2.ID, achievement.ID, "nope"))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusForbidden, rec)

	// a teacher without can_issue still can
	req, rec = newAuthRequest(http.MethodPost, "/v1/points", getToken(t, teacherLow), body(student.ID, achievement.ID, "participation"))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/points", getToken(t, admin), body(student.ID, behaviour.ID, "late"))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	// totals
	req, rec = newAuthRequest(http.MethodGet, "/v1/points/totals/"+student.ID, getToken(t, student))
	env.app.ServeHTTP(rec, req)
	tt := httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, award.Totals{Achievement: achievement.Magnitude, Behaviour: behaviour.Magnitude}),
	}
	checkCodeAndData(t, tt, rec)

	// students cannot read another holder's ledger
	req, rec = newAuthRequest(http.MethodGet, "/v1/points/totals/"+student.ID, getToken(t, student2))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusNotFound, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/points/entries/"+student.ID, getToken(t, student2))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusNotFound, rec)

	// entries, newest first
	req, rec = newAuthRequest(http.MethodGet, "/v1/points/entries/"+student.ID, getToken(t, admin))
	env.app.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)

	var entries []award.PointEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d; want 2", len(entries))
	}
	if entries[0].Delta != behaviour.SignedDelta() {
		t.Errorf("entries[0].Delta = %d; want %d", entries[0].Delta, behaviour.SignedDelta())
	}
}
