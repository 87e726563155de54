package user

import (
	"context"

	"github.com/blockward/blockward/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose async side effects run synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
			logger:  logger,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
