package award

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/blockward/blockward/core"
)

// Polarity determines the sign applied to a category's point magnitude.
type Polarity string

const (
	PolarityAchievement Polarity = "achievement"
	PolarityBehaviour   Polarity = "behaviour"
)

// Credential statuses
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

const (
	titleMaxLen       = 200
	descriptionMaxLen = 1000
)

// Category is a named point/achievement type. Magnitude is always stored as
// an absolute value; Polarity carries the sign.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Polarity  Polarity  `json:"polarity"`
	Magnitude int       `json:"magnitude"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// SignedDelta returns the point delta this category applies to a holder:
// positive for achievement, negative for behaviour.
func (c Category) SignedDelta() int {
	if c.Polarity == PolarityBehaviour {
		return -c.Magnitude
	}
	return c.Magnitude
}

// Credential is an issued BlockWard. Holder, issuer, title, category and
// issued-at are immutable after creation; the only permitted transition is
// active -> revoked, exactly once.
type Credential struct {
	ID          string    `json:"id"`
	HolderID    string    `json:"holder_id"`
	IssuerID    string    `json:"issuer_id"`
	CategoryID  string    `json:"category_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issued_at"` // UTC

	// set only once the credential is revoked
	RevokedAt    time.Time `json:"revoked_at,omitempty"`
	RevokedBy    string    `json:"revoked_by,omitempty"`
	RevokeReason string    `json:"revoke_reason,omitempty"`

	// reserved for an optional on-chain mirror; nothing writes it yet
	TxRef string `json:"tx_ref,omitempty"`
}

func (c Credential) IsRevoked() bool {
	return c.Status == StatusRevoked
}

// PointEntry is a line in the append-only point ledger, optionally correlated
// to a Credential.
type PointEntry struct {
	ID           int64     `json:"id"`
	HolderID     string    `json:"holder_id"`
	IssuerID     string    `json:"issuer_id"`
	CategoryID   string    `json:"category_id"`
	CredentialID string    `json:"credential_id,omitempty"`
	Delta        int       `json:"delta"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// Totals is the per-holder projection of the point ledger, always derivable
// by replaying the holder's entries.
type Totals struct {
	Achievement int `json:"achievement"`
	Behaviour   int `json:"behaviour"`
}

// NewCategory contains information needed to create a new Category.
type NewCategory struct {
	Name      string   `json:"name" validate:"required,max=100"`
	Polarity  Polarity `json:"polarity" validate:"required,polarity"`
	Magnitude int      `json:"magnitude" validate:"required"`
	Color     string   `json:"color" validate:"omitempty,hexcolor"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateCategory defines what information may be provided to modify an
// existing Category.
type UpdateCategory struct {
	Name      string   `json:"name" validate:"omitempty,max=100"`
	Polarity  Polarity `json:"polarity" validate:"omitempty,polarity"`
	Magnitude *int     `json:"magnitude"`
	Color     string   `json:"color" validate:"omitempty,hexcolor"`
}

func (uc *UpdateCategory) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Magnitude != nil && *uc.Magnitude == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "magnitude", Error: magnitudeText})
	}
	return nil
}

// NewCredential contains information needed to issue a new Credential.
type NewCredential struct {
	HolderID    string `json:"holder_id" validate:"required"`
	CategoryID  string `json:"category_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

func (ni *NewCredential) Validate(validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

// RevokeCredential contains information needed to revoke a Credential.
type RevokeCredential struct {
	CredentialID string `json:"credential_id" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=500"`
}

func (rc *RevokeCredential) Validate(validate *validator.Validate) error {
	rc.Reason = core.CleanString(rc.Reason)
	return validate.Struct(rc)
}

// NewPointEntry contains information needed to append a plain point delta,
// without an associated Credential.
type NewPointEntry struct {
	HolderID   string `json:"holder_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

func (np *NewPointEntry) Validate(validate *validator.Validate) error {
	np.Reason = core.CleanString(np.Reason)
	return validate.Struct(np)
}

// QueryFilter filters credential queries; fields are ANDed.
type QueryFilter struct {
	HolderID string `query:"holder"`
	IssuerID string `query:"issuer"`
	Status   string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.HolderID == "" && qf.IssuerID == "" && qf.Status == ""
}

// InitValidators registers the award package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	initValidators(validate, translator)
}
