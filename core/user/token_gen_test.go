package user

import (
	"testing"
	"time"

	"github.com/blockward/blockward/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := core.NewTestConfig()

	now := time.Now()
	usr := User{
		ID:        "6a4bbf96-3703-4e2b-9022-71a629bbe59b",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	usr.SetActive(true)
	_ = usr.SetPassword("pwd")

	validToken, err := makeToken(conf, usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := makeToken(conf, usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}
	nowFunc = time.Now // reset

	// a token made for another user must not verify for usr
	other := usr
	other.ID = "c3b9f0de-9f53-43aa-ae1c-9e5ceae3da9a"
	otherToken, err := makeToken(conf, other)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid token", token: validToken},
		{name: "empty token", token: "", wantErr: errInvalidToken},
		{name: "malformed token", token: "n0t-a_Token", wantErr: errInvalidToken},
		{name: "missing separator", token: "n0taT0ken", wantErr: errInvalidToken},
		{name: "another user's token", token: otherToken, wantErr: errInvalidToken},
		{name: "expired token", token: expiredToken, wantErr: errTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(conf, usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyTokenInvalidatedByPasswordChange(t *testing.T) {
	conf := core.NewTestConfig()

	usr := User{ID: "6a4bbf96-3703-4e2b-9022-71a629bbe59b"}
	_ = usr.SetPassword("0ldPa$sw0rd")

	token, err := makeToken(conf, usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}
	if err = verifyToken(conf, usr, token); err != nil {
		t.Fatalf("verifyToken() error = %v; want nil", err)
	}

	_ = usr.SetPassword("n3wPa$sw0rd")
	if err = verifyToken(conf, usr, token); err != errInvalidToken {
		t.Errorf("verifyToken() after password change error = %v; wantErr %v", err, errInvalidToken)
	}
}
