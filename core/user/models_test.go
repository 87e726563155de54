package user

import "testing"

func TestHasCapability(t *testing.T) {
	student := User{Roles: []string{RoleStudent}}
	teacher := User{Roles: []string{RoleTeacher}}
	issuingTeacher := User{Roles: []string{RoleTeacher}, CanIssue: true}
	admin := User{Roles: []string{RoleAdmin}}
	principal := User{Roles: []string{RoleAdminPrincipal}}
	nobody := User{}

	tests := []struct {
		name string
		usr  User
		cap  Capability
		want bool
	}{
		{name: "student cannot issue", usr: student, cap: CapIssueCredential},
		{name: "teacher without flag cannot issue", usr: teacher, cap: CapIssueCredential},
		{name: "teacher with flag can issue", usr: issuingTeacher, cap: CapIssueCredential, want: true},
		{name: "admin can issue", usr: admin, cap: CapIssueCredential, want: true},
		{name: "principal can issue", usr: principal, cap: CapIssueCredential, want: true},

		{name: "issuing teacher cannot revoke", usr: issuingTeacher, cap: CapRevokeCredential},
		{name: "student cannot revoke", usr: student, cap: CapRevokeCredential},
		{name: "admin can revoke", usr: admin, cap: CapRevokeCredential, want: true},

		{name: "teacher cannot manage categories", usr: issuingTeacher, cap: CapManageCategories},
		{name: "admin can manage categories", usr: admin, cap: CapManageCategories, want: true},

		{name: "roleless user has no capability", usr: nobody, cap: CapIssueCredential},
		{name: "unknown capability", usr: admin, cap: Capability("rule_the_world")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.usr.HasCapability(tt.cap); got != tt.want {
				t.Errorf("HasCapability(%q) = %v; want %v", tt.cap, got, tt.want)
			}
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "empty", roles: nil, want: 0},
		{name: "student", roles: []string{RoleStudent}, want: 1},
		{name: "teacher", roles: []string{RoleTeacher}, want: 11},
		{name: "student+teacher", roles: []string{RoleStudent, RoleTeacher}, want: 11},
		{name: "admin owner wins", roles: []string{RoleStudent, RoleAdminOwner}, want: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxRolePriority(tt.roles); got != tt.want {
				t.Errorf("MaxRolePriority() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestRoleChecks(t *testing.T) {
	usr := User{Roles: []string{RoleAdminPrincipal}}
	if !usr.IsAdmin() {
		t.Error("IsAdmin() = false; want true")
	}
	if usr.IsStudent() || usr.IsTeacher() {
		t.Error("principal should be neither student nor teacher")
	}
}
