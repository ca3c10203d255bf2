package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/user"
)

const userColumns = `id, name, COALESCE(username, '') AS username, COALESCE(email, '') AS email,
	is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	user.User
	Roles pq.StringArray `db:"roles"`
}

func (row userRow) toUser() user.User {
	usr := row.User
	usr.Roles = []string(row.Roles)
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error {
	var taken struct {
		Username bool `db:"username"`
		Email    bool `db:"email"`
	}
	q := `SELECT COALESCE(BOOL_OR(username = $1), false) AS username, COALESCE(BOOL_OR(email = $2), false) AS email
		FROM users WHERE id <> $3 AND (username = $1 OR email = $2)`
	if err := repo.db.GetContext(ctx, &taken, q, username, email, excludeID); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	switch {
	case username != "" && taken.Username:
		return user.ErrUsernameExists
	case email != "" && taken.Email:
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var cond conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		prefixes := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			prefixes = append(prefixes, likePattern(role)[1:]) // prefix match
		}
		cond.add("EXISTS (SELECT 1 FROM UNNEST(roles) AS r WHERE r LIKE ANY (?))", pq.StringArray(prefixes))
	}
	if filter.IsActive != nil {
		cond.add("is_active = ?", *filter.IsActive)
	}

	q := "SELECT " + userColumns + " FROM users" + cond.where() +
		" ORDER BY " + core.OrderByClause(ordering, "id ASC")
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var cond conditions
	switch {
	case filter.ID != 0:
		cond.add("id = ?", filter.ID)
	case filter.UsernameOrEmail != "":
		cond.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users"+cond.where()+" LIMIT 1", cond.args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = $1, username = NULLIF($2, ''), email = NULLIF($3, ''), is_active = $4,
		roles = $5, password_hash = $6, updated_at = $7 WHERE id = $8`
	res, err := repo.db.ExecContext(ctx, q,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id int64, t time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", t, id)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pq.Int64Array(ids))
	return errors.Wrap(err, "deleting users")
}
