package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/user"
)

type userRow struct {
	ID            string         `db:"id"`
	Name          null.String    `db:"name"`
	Username      null.String    `db:"username"`
	Email         null.String    `db:"email"`
	IsActive      null.Bool      `db:"is_active"`
	Roles         pq.StringArray `db:"roles"`
	GradeLevel    null.String    `db:"grade_level"`
	GuardianEmail null.String    `db:"guardian_email"`
	Department    null.String    `db:"department"`
	CanIssue      null.Bool      `db:"can_issue"`
	PasswordHash  null.Bytes     `db:"password_hash"`
	CreatedAt     null.Time      `db:"created_at"`
	UpdatedAt     null.Time      `db:"updated_at"`
	LastLogin     null.Time      `db:"last_login"`
}

type UserRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*UserRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *UserRepository) pack(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		Name:          null.NewString(usr.Name, usr.Name != ""),
		Username:      null.NewString(usr.Username, usr.Username != ""),
		Email:         null.NewString(usr.Email, usr.Email != ""),
		IsActive:      null.BoolFromPtr(usr.IsActive),
		Roles:         pq.StringArray(usr.Roles),
		GradeLevel:    null.NewString(usr.GradeLevel, usr.GradeLevel != ""),
		GuardianEmail: null.NewString(usr.GuardianEmail, usr.GuardianEmail != ""),
		Department:    null.NewString(usr.Department, usr.Department != ""),
		CanIssue:      null.BoolFrom(usr.CanIssue),
		PasswordHash:  null.BytesFrom(usr.PasswordHash),
		CreatedAt:     null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:     null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:     null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo *UserRepository) unpack(row userRow) user.User {
	return user.User{
		ID:            row.ID,
		Name:          row.Name.String,
		Username:      row.Username.String,
		Email:         row.Email.String,
		IsActive:      row.IsActive.Ptr(),
		Roles:         []string(row.Roles),
		GradeLevel:    row.GradeLevel.String,
		GuardianEmail: row.GuardianEmail.String,
		Department:    row.Department.String,
		CanIssue:      row.CanIssue.Bool,
		PasswordHash:  row.PasswordHash.Bytes,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
		LastLogin:     row.LastLogin.Time,
	}
}

func (repo *UserRepository) unpackSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unpack(row))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo *UserRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *UserRepository) checkUnique(ctx context.Context, column, value string, exclIDs []string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM "user" WHERE LOWER(%s) = LOWER($1)`, column)
	args := []interface{}{value}
	if len(exclIDs) > 0 {
		query += ` AND id != ALL($2)`
		args = append(args, pq.Array(exclIDs))
	}
	query += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, errors.Wrap(err, "checking user uniqueness")
	}
	return exists, nil
}

func (repo *UserRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		exclIDs = append(exclIDs, u.ID)
	}

	if username != "" {
		exists, err := repo.checkUnique(ctx, "username", username, exclIDs)
		if err != nil {
			return err
		}
		if exists {
			return user.ErrUsernameExists
		}
	}
	if email != "" {
		exists, err := repo.checkUnique(ctx, "email", email, exclIDs)
		if err != nil {
			return err
		}
		if exists {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.pack(usr)

	query := `
		INSERT INTO "user" (id, name, username, email, is_active, roles, grade_level, guardian_email,
		                    department, can_issue, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :grade_level, :guardian_email,
		        :department, :can_issue, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unpack(row), nil
}

func (repo *UserRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, filter.ID)
	case filter.Username != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE LOWER(username) = LOWER($1)`, filter.Username)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE LOWER(email) = LOWER($1)`, filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		err = repo.db.GetContext(ctx, &row,
			`SELECT * FROM "user" WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)`, uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unpack(row), nil
}

func (repo *UserRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, fmt.Sprintf(
				"(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", arg(val)))
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, fmt.Sprintf(
					"EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE %s)", arg(role+"%")))
			}
			conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	query := `SELECT * FROM "user"`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unpackSlice(rows), nil
}

func (repo *UserRepository) UpdateUser(ctx context.Context, usr user.User, isActive, canIssue *bool) (user.User, error) {
	row := repo.pack(usr)

	var sets []string
	var args []interface{}

	set := func(column string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if row.Name.Valid {
		set("name", row.Name)
	}
	if row.Username.Valid {
		set("username", row.Username)
	}
	if row.Email.Valid {
		set("email", row.Email)
	}
	if row.Roles != nil {
		set("roles", row.Roles)
	}
	if row.GradeLevel.Valid {
		set("grade_level", row.GradeLevel)
	}
	if row.GuardianEmail.Valid {
		set("guardian_email", row.GuardianEmail)
	}
	if row.Department.Valid {
		set("department", row.Department)
	}
	if canIssue != nil {
		set("can_issue", *canIssue)
	}
	if len(row.PasswordHash.Bytes) > 0 {
		set("password_hash", row.PasswordHash)
	}
	if row.UpdatedAt.Valid {
		set("updated_at", row.UpdatedAt)
	}
	if row.LastLogin.Valid {
		set("last_login", row.LastLogin)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}

	args = append(args, usr.ID)
	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = $%d RETURNING *`, strings.Join(sets, ", "), len(args))

	var updated userRow
	if err := repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return repo.unpack(updated), nil
}

func (repo *UserRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr, usr.IsActive, &usr.CanIssue)
}

func (repo *UserRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
