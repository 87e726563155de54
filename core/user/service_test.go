package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/user"
	emailsvc "github.com/blockward/blockward/services/email"
	dummydb "github.com/blockward/blockward/storage/database/dummy"
)

func setup(t *testing.T) (user.Service, user.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	conf := core.NewTestConfig()
	logger := core.NewNopLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	repo := dummydb.NewUserRepository(db)
	return user.NewServiceMock(repo, mailSvc, conf, logger), repo
}

func createUser(t *testing.T, repo user.Repository, name, uname, email string, roles []string, canIssue bool) user.User {
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
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func TestServiceUpdateCanIssue(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, repo, "Teacher", "teach", "teach@test.cd", user.TeacherRoles, true)

	// an update that does not mention can_issue must not touch it
	if _, err := svc.Update(ctx, teacher.ID, user.UpdateUser{Name: "Renamed"}); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	got, err := svc.GetByID(ctx, teacher.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q; want %q", got.Name, "Renamed")
	}
	if !got.CanIssue {
		t.Error("CanIssue was cleared by an unrelated update")
	}
	if !got.HasCapability(user.CapIssueCredential) {
		t.Errorf("HasCapability(%s) = false; want true", user.CapIssueCredential)
	}

	// an explicit can_issue toggles the flag
	canIssue := false
	if _, err = svc.Update(ctx, teacher.ID, user.UpdateUser{CanIssue: &canIssue}); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if got, err = svc.GetByID(ctx, teacher.ID); err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if got.CanIssue {
		t.Error("CanIssue = true; want false")
	}

	canIssue = true
	if _, err = svc.Update(ctx, teacher.ID, user.UpdateUser{CanIssue: &canIssue}); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if got, err = svc.GetByID(ctx, teacher.ID); err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if !got.CanIssue {
		t.Error("CanIssue = false; want true")
	}
	if !got.Active() {
		t.Error("IsActive was cleared by an unrelated update")
	}
}
