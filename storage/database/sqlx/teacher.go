package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/teacher"
)

const teacherColumns = `id, employee_id, first_name, last_name, email, contact, department, password_hash,
	verification_status, created_at, updated_at, last_login`

type teacherRepository struct {
	db *sqlx.DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *sqlx.DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CheckEmailUniqueness(ctx context.Context, email string, excludeID int64) error {
	var taken bool
	q := "SELECT EXISTS (SELECT 1 FROM teachers WHERE LOWER(email) = LOWER($1) AND id <> $2)"
	if err := repo.db.GetContext(ctx, &taken, q, email, excludeID); err != nil {
		return errors.Wrap(err, "checking teacher email uniqueness")
	}
	if taken {
		return teacher.ErrEmailExists
	}
	return nil
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	q := `INSERT INTO teachers (employee_id, first_name, last_name, email, contact, department, password_hash,
			verification_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q,
		t.EmployeeID, t.FirstName, t.LastName, t.Email, t.Contact, t.Department, t.PasswordHash,
		t.VerificationStatus, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return teacher.Teacher{}, teacher.ErrEmailExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter teacher.QueryFilter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	var cond conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(CONCAT_WS(' ', first_name, last_name) ILIKE ? OR email ILIKE ? OR employee_id ILIKE ?)", pattern, pattern, pattern)
	}
	if filter.Status != "" {
		cond.add("verification_status = ?", filter.Status)
	}
	if filter.Department != "" {
		cond.add("LOWER(department) = LOWER(?)", filter.Department)
	}

	q := "SELECT " + teacherColumns + " FROM teachers" + cond.where() +
		" ORDER BY " + core.OrderByClause(ordering, "last_name ASC, first_name ASC") + ", id ASC"
	teachers := make([]teacher.Teacher, 0)
	if err := repo.db.SelectContext(ctx, &teachers, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	return teachers, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, filter teacher.GetFilter) (teacher.Teacher, error) {
	var cond conditions
	switch {
	case filter.ID != 0:
		cond.add("id = ?", filter.ID)
	case filter.Email != "":
		cond.add("LOWER(email) = LOWER(?)", filter.Email)
	default:
		return teacher.Teacher{}, teacher.ErrNotFound
	}

	var t teacher.Teacher
	if err := repo.db.GetContext(ctx, &t, "SELECT "+teacherColumns+" FROM teachers"+cond.where(), cond.args...); err != nil {
		if err == sql.ErrNoRows {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		return teacher.Teacher{}, errors.Wrap(err, "selecting teacher")
	}
	return t, nil
}

// UpdateTeacher updates the profile of a teacher; the verification status is only written by SetVerificationStatus.
func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	q := `UPDATE teachers SET employee_id = $1, first_name = $2, last_name = $3, email = $4, contact = $5,
			department = $6, password_hash = $7, updated_at = $8
		WHERE id = $9`
	res, err := repo.db.ExecContext(ctx, q,
		t.EmployeeID, t.FirstName, t.LastName, t.Email, t.Contact, t.Department, t.PasswordHash, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return repo.GetTeacher(ctx, teacher.GetFilter{ID: t.ID})
}

func (repo *teacherRepository) SetVerificationStatus(ctx context.Context, id int64, status string) (teacher.Teacher, error) {
	q := `UPDATE teachers SET verification_status = $1, updated_at = $2
		WHERE id = $3 AND verification_status = $4
		RETURNING ` + teacherColumns
	var t teacher.Teacher
	err := repo.db.GetContext(ctx, &t, q, status, time.Now().UTC(), id, teacher.StatusPending)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher status")
	}

	// not updated: either missing or no longer pending
	if t, err = repo.GetTeacher(ctx, teacher.GetFilter{ID: id}); err != nil {
		return teacher.Teacher{}, err
	}
	return t, teacher.ErrAlreadyVerified
}

func (repo *teacherRepository) SetLastLogin(ctx context.Context, id int64, t time.Time) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE teachers SET last_login = $1 WHERE id = $2", t, id)
	return errors.Wrap(err, "updating last login")
}

// DeleteTeacher deletes a teacher; their grade requests cascade and their classes lose their adviser.
func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM teachers WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return teacher.ErrNotFound
	}
	return nil
}

func (repo *teacherRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"verification_status"`
		Count  int    `db:"count"`
	}
	q := "SELECT verification_status, COUNT(*) AS count FROM teachers GROUP BY verification_status"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting teachers")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
