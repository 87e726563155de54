package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/award"
)

// pq unique_violation
const pqUniqueViolation = "23505"

type categoryRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Polarity  string      `db:"polarity"`
	Magnitude int         `db:"magnitude"`
	Color     null.String `db:"color"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

type credentialRow struct {
	ID           string      `db:"id"`
	HolderID     string      `db:"holder_id"`
	IssuerID     string      `db:"issuer_id"`
	CategoryID   string      `db:"category_id"`
	Title        string      `db:"title"`
	Description  null.String `db:"description"`
	Status       string      `db:"status"`
	IssuedAt     null.Time   `db:"issued_at"`
	RevokedAt    null.Time   `db:"revoked_at"`
	RevokedBy    null.String `db:"revoked_by"`
	RevokeReason null.String `db:"revoke_reason"`
	TxRef        null.String `db:"tx_ref"`
}

type pointEntryRow struct {
	ID           int64       `db:"id"`
	HolderID     string      `db:"holder_id"`
	IssuerID     string      `db:"issuer_id"`
	CategoryID   string      `db:"category_id"`
	CredentialID null.String `db:"credential_id"`
	Delta        int         `db:"delta"`
	Reason       null.String `db:"reason"`
	CreatedAt    null.Time   `db:"created_at"`
}

type AwardRepository struct {
	db *sqlx.DB
}

var _ award.Repository = (*AwardRepository)(nil) // interface compliance check

func NewAwardRepository(db *sql.DB) *AwardRepository {
	return &AwardRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *AwardRepository) packCategory(cat award.Category) categoryRow {
	return categoryRow{
		ID:        cat.ID,
		Name:      cat.Name,
		Polarity:  string(cat.Polarity),
		Magnitude: cat.Magnitude,
		Color:     null.NewString(cat.Color, cat.Color != ""),
		CreatedAt: null.NewTime(cat.CreatedAt.UTC(), !cat.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(cat.UpdatedAt.UTC(), !cat.UpdatedAt.IsZero()),
	}
}

func (repo *AwardRepository) unpackCategory(row categoryRow) award.Category {
	return award.Category{
		ID:        row.ID,
		Name:      row.Name,
		Polarity:  award.Polarity(row.Polarity),
		Magnitude: row.Magnitude,
		Color:     row.Color.String,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo *AwardRepository) packCredential(cred award.Credential) credentialRow {
	return credentialRow{
		ID:           cred.ID,
		HolderID:     cred.HolderID,
		IssuerID:     cred.IssuerID,
		CategoryID:   cred.CategoryID,
		Title:        cred.Title,
		Description:  null.NewString(cred.Description, cred.Description != ""),
		Status:       cred.Status,
		IssuedAt:     null.NewTime(cred.IssuedAt.UTC(), !cred.IssuedAt.IsZero()),
		RevokedAt:    null.NewTime(cred.RevokedAt.UTC(), !cred.RevokedAt.IsZero()),
		RevokedBy:    null.NewString(cred.RevokedBy, cred.RevokedBy != ""),
		RevokeReason: null.NewString(cred.RevokeReason, cred.RevokeReason != ""),
		TxRef:        null.NewString(cred.TxRef, cred.TxRef != ""),
	}
}

func (repo *AwardRepository) unpackCredential(row credentialRow) award.Credential {
	return award.Credential{
		ID:           row.ID,
		HolderID:     row.HolderID,
		IssuerID:     row.IssuerID,
		CategoryID:   row.CategoryID,
		Title:        row.Title,
		Description:  row.Description.String,
		Status:       row.Status,
		IssuedAt:     row.IssuedAt.Time,
		RevokedAt:    row.RevokedAt.Time,
		RevokedBy:    row.RevokedBy.String,
		RevokeReason: row.RevokeReason.String,
		TxRef:        row.TxRef.String,
	}
}

func (repo *AwardRepository) packEntry(entry award.PointEntry) pointEntryRow {
	return pointEntryRow{
		ID:           entry.ID,
		HolderID:     entry.HolderID,
		IssuerID:     entry.IssuerID,
		CategoryID:   entry.CategoryID,
		CredentialID: null.NewString(entry.CredentialID, entry.CredentialID != ""),
		Delta:        entry.Delta,
		Reason:       null.NewString(entry.Reason, entry.Reason != ""),
		CreatedAt:    null.NewTime(entry.CreatedAt.UTC(), !entry.CreatedAt.IsZero()),
	}
}

func (repo *AwardRepository) unpackEntry(row pointEntryRow) award.PointEntry {
	return award.PointEntry{
		ID:           row.ID,
		HolderID:     row.HolderID,
		IssuerID:     row.IssuerID,
		CategoryID:   row.CategoryID,
		CredentialID: row.CredentialID.String,
		Delta:        row.Delta,
		Reason:       row.Reason.String,
		CreatedAt:    row.CreatedAt.Time,
	}
}

// isUniqueViolation reports whether err is a pq unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

// Categories

func (repo *AwardRepository) CreateCategory(ctx context.Context, cat award.Category) (award.Category, error) {
	row := repo.packCategory(cat)
	query := `
		INSERT INTO category (id, name, polarity, magnitude, color, created_at, updated_at)
		VALUES (:id, :name, :polarity, :magnitude, :color, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return award.Category{}, award.ErrCategoryExists
		}
		return award.Category{}, errors.Wrap(err, "inserting category")
	}
	return repo.unpackCategory(row), nil
}

func (repo *AwardRepository) GetCategory(ctx context.Context, id string) (award.Category, error) {
	var row categoryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM category WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return award.Category{}, award.ErrCategoryNotFound
		}
		return award.Category{}, errors.Wrap(err, "finding category")
	}
	return repo.unpackCategory(row), nil
}

func (repo *AwardRepository) QueryCategories(ctx context.Context) ([]award.Category, error) {
	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM category ORDER BY name ASC`); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]award.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, repo.unpackCategory(row))
	}
	return cats, nil
}

func (repo *AwardRepository) UpdateCategory(ctx context.Context, cat award.Category) (award.Category, error) {
	row := repo.packCategory(cat)
	query := `
		UPDATE category
		SET name = :name, polarity = :polarity, magnitude = :magnitude, color = :color, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err) {
			return award.Category{}, award.ErrCategoryExists
		}
		return award.Category{}, errors.Wrap(err, "updating category")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return award.Category{}, award.ErrCategoryNotFound
	}
	return repo.unpackCategory(row), nil
}

func (repo *AwardRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM category WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting category")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return award.ErrCategoryNotFound
	}
	return nil
}

// Credentials

func (repo *AwardRepository) CreateCredential(ctx context.Context, cred award.Credential, entry *award.PointEntry) (award.Credential, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return award.Credential{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row := repo.packCredential(cred)
	query := `
		INSERT INTO credential (id, holder_id, issuer_id, category_id, title, description, status, issued_at, tx_ref)
		VALUES (:id, :holder_id, :issuer_id, :category_id, :title, :description, :status, :issued_at, :tx_ref)`
	if _, err = tx.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return award.Credential{}, award.ErrCredentialExists
		}
		return award.Credential{}, errors.Wrap(err, "inserting credential")
	}

	if entry != nil {
		entryRow := repo.packEntry(*entry)
		query = `
			INSERT INTO point_entry (holder_id, issuer_id, category_id, credential_id, delta, reason, created_at)
			VALUES (:holder_id, :issuer_id, :category_id, :credential_id, :delta, :reason, :created_at)`
		if _, err = tx.NamedExecContext(ctx, query, entryRow); err != nil {
			return award.Credential{}, errors.Wrap(err, "inserting point entry")
		}
	}

	if err = tx.Commit(); err != nil {
		return award.Credential{}, errors.Wrap(err, "committing credential")
	}
	return repo.unpackCredential(row), nil
}

func (repo *AwardRepository) GetCredential(ctx context.Context, id string) (award.Credential, error) {
	var row credentialRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM credential WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return award.Credential{}, award.ErrCredentialNotFound
		}
		return award.Credential{}, errors.Wrap(err, "finding credential")
	}
	return repo.unpackCredential(row), nil
}

func (repo *AwardRepository) QueryCredentials(ctx context.Context, filter *award.QueryFilter, ordering []core.DBOrdering) ([]award.Credential, error) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return "$" + strconv.Itoa(len(args))
	}

	if filter != nil {
		if filter.HolderID != "" {
			conds = append(conds, "holder_id = "+arg(filter.HolderID))
		}
		if filter.IssuerID != "" {
			conds = append(conds, "issuer_id = "+arg(filter.IssuerID))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
	}

	query := `SELECT * FROM credential`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		// newest first
		query += " ORDER BY issued_at DESC"
	}

	var rows []credentialRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying credentials")
	}
	creds := make([]award.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, repo.unpackCredential(row))
	}
	return creds, nil
}

func (repo *AwardRepository) RevokeCredential(ctx context.Context, cred award.Credential) (award.Credential, error) {
	row := repo.packCredential(cred)

	// conditional on status so a racing revoke cannot overwrite the first one
	query := `
		UPDATE credential
		SET status = :status, revoked_at = :revoked_at, revoked_by = :revoked_by, revoke_reason = :revoke_reason
		WHERE id = :id AND status = 'active'`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return award.Credential{}, errors.Wrap(err, "revoking credential")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return award.Credential{}, errors.Wrap(err, "revoking credential")
	}
	if cnt == 0 {
		// either gone or already revoked; re-read to tell the two apart
		existing, err := repo.GetCredential(ctx, cred.ID)
		if err != nil {
			return award.Credential{}, err
		}
		if existing.IsRevoked() {
			return award.Credential{}, award.ErrAlreadyRevoked
		}
		return award.Credential{}, award.ErrCredentialNotFound
	}
	return repo.unpackCredential(row), nil
}

// Points

func (repo *AwardRepository) CreatePointEntry(ctx context.Context, entry award.PointEntry) (award.PointEntry, error) {
	row := repo.packEntry(entry)
	query := `
		INSERT INTO point_entry (holder_id, issuer_id, category_id, credential_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := repo.db.GetContext(ctx, &row.ID, query,
		row.HolderID, row.IssuerID, row.CategoryID, row.CredentialID, row.Delta, row.Reason, row.CreatedAt,
	); err != nil {
		return award.PointEntry{}, errors.Wrap(err, "inserting point entry")
	}
	return repo.unpackEntry(row), nil
}

func (repo *AwardRepository) QueryPointEntries(ctx context.Context, holderID string) ([]award.PointEntry, error) {
	var rows []pointEntryRow
	query := `SELECT * FROM point_entry WHERE holder_id = $1 ORDER BY created_at DESC, id DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, holderID); err != nil {
		return nil, errors.Wrap(err, "querying point entries")
	}
	entries := make([]award.PointEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, repo.unpackEntry(row))
	}
	return entries, nil
}

func (repo *AwardRepository) GetPointTotals(ctx context.Context, holderID string) (award.Totals, error) {
	var totals award.Totals
	query := `
		SELECT COALESCE(SUM(delta) FILTER (WHERE delta > 0), 0)  AS achievement,
		       COALESCE(-SUM(delta) FILTER (WHERE delta < 0), 0) AS behaviour
		FROM point_entry
		WHERE holder_id = $1`
	if err := repo.db.QueryRowxContext(ctx, query, holderID).Scan(&totals.Achievement, &totals.Behaviour); err != nil {
		return award.Totals{}, errors.Wrap(err, "computing point totals")
	}
	return totals, nil
}
