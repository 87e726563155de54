package award

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/user"
)

var (
	// errors
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrCategoryExists     = errors.New("a category with this name already exists")
	ErrAlreadyRevoked     = errors.New("credential is already revoked")
	ErrInvalidHolder      = errors.New("holder must be an existing student")
	ErrIssueForbidden     = errors.New("not allowed to issue credentials")
	ErrRevokeForbidden    = errors.New("not allowed to revoke credentials")
	ErrCategoryForbidden  = errors.New("not allowed to manage categories")
	ErrPointsForbidden    = errors.New("not allowed to award points")

	// ErrCredentialExists signals a credential identifier collision in
	// storage. It is the only error class the service retries (exactly once,
	// with a fresh identifier).
	ErrCredentialExists = errors.New("a credential with this identifier already exists")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context) ([]Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		// CreateCredential appends the credential and, when entry is non-nil,
		// its correlated point entry in a single transaction: either both
		// rows commit or neither does. ErrCredentialExists is returned on a
		// credential ID collision.
		CreateCredential(ctx context.Context, cred Credential, entry *PointEntry) (Credential, error)
		GetCredential(ctx context.Context, id string) (Credential, error)
		// QueryCredentials applies AND operation on available QueryFilter
		// fields. Revoked credentials are included unless filtered out.
		QueryCredentials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Credential, error)
		// RevokeCredential applies the active -> revoked transition. It must
		// be conditional on the current status: ErrAlreadyRevoked is returned
		// when the credential is no longer active, leaving the original
		// revocation record untouched.
		RevokeCredential(ctx context.Context, cred Credential) (Credential, error)

		CreatePointEntry(ctx context.Context, entry PointEntry) (PointEntry, error)
		QueryPointEntries(ctx context.Context, holderID string) ([]PointEntry, error)
		GetPointTotals(ctx context.Context, holderID string) (Totals, error)
	}

	Service interface {
		// Issue validates the request against the issuer's capabilities and
		// the category catalog, then atomically appends a Credential and its
		// correlated PointEntry. Nothing is appended on any failure.
		Issue(ctx context.Context, issuer user.User, ni NewCredential) (Credential, error)
		// Revoke transitions a credential from active to revoked, exactly
		// once; a second call fails with ErrAlreadyRevoked.
		Revoke(ctx context.Context, actor user.User, rc RevokeCredential) (Credential, error)
		Get(ctx context.Context, id string) (Credential, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Credential, error)
		ByHolder(ctx context.Context, holderID string) ([]Credential, error)
		ByIssuer(ctx context.Context, issuerID string) ([]Credential, error)

		// AwardPoints appends a plain point delta without a credential.
		// Unlike Issue, it is open to all teachers regardless of the
		// CanIssue flag.
		AwardPoints(ctx context.Context, issuer user.User, np NewPointEntry) (PointEntry, error)
		Totals(ctx context.Context, holderID string) (Totals, error)
		Entries(ctx context.Context, holderID string) ([]PointEntry, error)

		CreateCategory(ctx context.Context, actor user.User, nc NewCategory) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context) ([]Category, error)
		UpdateCategory(ctx context.Context, actor user.User, id string, uc UpdateCategory) (Category, error)
		DeleteCategory(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		repo     Repository
		usrSvc   user.Service
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
) Service {
	return &service{
		repo:     repo,
		usrSvc:   usrSvc,
		mailSvc:  mailSvc,
		conf:     conf,
		logger:   logger,
		validate: validate,
	}
}

// Categories

func (svc *service) CreateCategory(ctx context.Context, actor user.User, nc NewCategory) (Category, error) {
	if !actor.HasCapability(user.CapManageCategories) {
		return Category{}, ErrCategoryForbidden
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Category{}, err
	}

	now := time.Now().UTC()
	cat := Category{
		ID:        uuid.New().String(),
		Name:      nc.Name,
		Polarity:  nc.Polarity,
		Magnitude: abs(nc.Magnitude),
		Color:     nc.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateCategory(ctx, cat)
}

func (svc *service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCategories(ctx)
}

func (svc *service) UpdateCategory(ctx context.Context, actor user.User, id string, uc UpdateCategory) (Category, error) {
	if !actor.HasCapability(user.CapManageCategories) {
		return Category{}, ErrCategoryForbidden
	}
	if err := uc.Validate(svc.validate); err != nil {
		return Category{}, err
	}

	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if uc.Name != "" {
		cat.Name = uc.Name
	}
	if uc.Polarity != "" {
		cat.Polarity = uc.Polarity
	}
	if uc.Magnitude != nil {
		cat.Magnitude = abs(*uc.Magnitude)
	}
	if uc.Color != "" {
		cat.Color = uc.Color
	}
	cat.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCategory(ctx, cat)
}

func (svc *service) DeleteCategory(ctx context.Context, actor user.User, id string) error {
	if !actor.HasCapability(user.CapManageCategories) {
		return ErrCategoryForbidden
	}
	return svc.repo.DeleteCategory(ctx, id)
}

// Credentials

func (svc *service) Issue(ctx context.Context, issuer user.User, ni NewCredential) (Credential, error) {
	if !issuer.HasCapability(user.CapIssueCredential) {
		return Credential{}, ErrIssueForbidden
	}

	holder, err := svc.resolveHolder(ctx, ni.HolderID)
	if err != nil {
		return Credential{}, err
	}

	cat, err := svc.repo.GetCategory(ctx, ni.CategoryID)
	if err != nil {
		return Credential{}, err
	}

	if err = ni.Validate(svc.validate); err != nil {
		return Credential{}, err
	}

	cred := Credential{
		HolderID:    holder.ID,
		IssuerID:    issuer.ID,
		CategoryID:  cat.ID,
		Title:       ni.Title,
		Description: ni.Description,
		Status:      StatusActive,
		IssuedAt:    time.Now().UTC(),
	}

	// The credential and its point entry commit in one transaction. An ID
	// collision is an internal generation fault, not a caller error: retry
	// exactly once with a fresh identifier, then give up.
	created, err := svc.appendCredential(ctx, cred, cat)
	if errors.Cause(err) == ErrCredentialExists {
		svc.logger.Warn("credential ID collision, retrying with a fresh ID", err)
		created, err = svc.appendCredential(ctx, cred, cat)
	}
	if err != nil {
		return Credential{}, err
	}

	svc.notifyHolder(holder, created, cat)
	return created, nil
}

func (svc *service) appendCredential(ctx context.Context, cred Credential, cat Category) (Credential, error) {
	cred.ID = uuid.New().String()

	var entry *PointEntry
	if cat.Magnitude != 0 {
		entry = &PointEntry{
			HolderID:     cred.HolderID,
			IssuerID:     cred.IssuerID,
			CategoryID:   cred.CategoryID,
			CredentialID: cred.ID,
			Delta:        cat.SignedDelta(),
			Reason:       cred.Title,
			CreatedAt:    cred.IssuedAt,
		}
	}
	return svc.repo.CreateCredential(ctx, cred, entry)
}

func (svc *service) resolveHolder(ctx context.Context, holderID string) (user.User, error) {
	holder, err := svc.usrSvc.GetByID(ctx, holderID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrInvalidHolder
		}
		return user.User{}, errors.Wrap(err, "resolving holder")
	}
	if !holder.IsStudent() {
		return user.User{}, ErrInvalidHolder
	}
	return holder, nil
}

func (svc *service) notifyHolder(holder user.User, cred Credential, cat Category) {
	if holder.Email == "" {
		return
	}
	var points int
	if cat.Magnitude != 0 {
		points = cat.SignedDelta()
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: holder.Name, Address: holder.Email}},
		Subject:      "You received a new BlockWard!",
		TemplateName: "award_issued",
		TemplateData: struct {
			HolderName string
			Title      string
			Points     int
			Polarity   Polarity
		}{
			HolderName: holder.Name,
			Title:      cred.Title,
			Points:     points,
			Polarity:   cat.Polarity,
		},
	})
}

func (svc *service) Revoke(ctx context.Context, actor user.User, rc RevokeCredential) (Credential, error) {
	if !actor.HasCapability(user.CapRevokeCredential) {
		return Credential{}, ErrRevokeForbidden
	}
	if err := rc.Validate(svc.validate); err != nil {
		return Credential{}, err
	}

	cred, err := svc.repo.GetCredential(ctx, rc.CredentialID)
	if err != nil {
		return Credential{}, err
	}
	if cred.IsRevoked() {
		return Credential{}, ErrAlreadyRevoked
	}

	cred.Status = StatusRevoked
	cred.RevokedAt = time.Now().UTC()
	cred.RevokedBy = actor.ID
	cred.RevokeReason = rc.Reason
	return svc.repo.RevokeCredential(ctx, cred)
}

func (svc *service) Get(ctx context.Context, id string) (Credential, error) {
	return svc.repo.GetCredential(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Credential, error) {
	return svc.repo.QueryCredentials(ctx, filter, ordering)
}

func (svc *service) ByHolder(ctx context.Context, holderID string) ([]Credential, error) {
	return svc.repo.QueryCredentials(ctx, &QueryFilter{HolderID: holderID}, nil)
}

func (svc *service) ByIssuer(ctx context.Context, issuerID string) ([]Credential, error) {
	return svc.repo.QueryCredentials(ctx, &QueryFilter{IssuerID: issuerID}, nil)
}

// Points

func (svc *service) AwardPoints(ctx context.Context, issuer user.User, np NewPointEntry) (PointEntry, error) {
	if !(issuer.IsTeacher() || issuer.IsAdmin()) {
		return PointEntry{}, ErrPointsForbidden
	}

	holder, err := svc.resolveHolder(ctx, np.HolderID)
	if err != nil {
		return PointEntry{}, err
	}

	cat, err := svc.repo.GetCategory(ctx, np.CategoryID)
	if err != nil {
		return PointEntry{}, err
	}

	if err = np.Validate(svc.validate); err != nil {
		return PointEntry{}, err
	}

	entry := PointEntry{
		HolderID:   holder.ID,
		IssuerID:   issuer.ID,
		CategoryID: cat.ID,
		Delta:      cat.SignedDelta(),
		Reason:     np.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreatePointEntry(ctx, entry)
}

func (svc *service) Totals(ctx context.Context, holderID string) (Totals, error) {
	return svc.repo.GetPointTotals(ctx, holderID)
}

func (svc *service) Entries(ctx context.Context, holderID string) ([]PointEntry, error) {
	return svc.repo.QueryPointEntries(ctx, holderID)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
