package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/student"
)

const studentColumns = `id, lrn, first_name, middle_name, last_name, age, sex, grade_level, section, contact,
	email, password_hash, average::float8 AS average, created_at, updated_at`

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckUniqueness(ctx context.Context, lrn, email string, excludeID int64) error {
	var taken struct {
		LRN   bool `db:"lrn"`
		Email bool `db:"email"`
	}
	q := `SELECT COALESCE(BOOL_OR(lrn = $1), false) AS lrn, COALESCE(BOOL_OR(LOWER(email) = LOWER($2)), false) AS email
		FROM students WHERE id <> $3 AND (lrn = $1 OR LOWER(email) = LOWER($2))`
	if err := repo.db.GetContext(ctx, &taken, q, lrn, email, excludeID); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	switch {
	case taken.LRN:
		return student.ErrLRNExists
	case email != "" && taken.Email:
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `INSERT INTO students (lrn, first_name, middle_name, last_name, age, sex, grade_level, section, contact,
			email, password_hash, average, created_at, updated_at)
		VALUES (:lrn, :first_name, :middle_name, :last_name, :age, :sex, :grade_level, :section, :contact,
			:email, :password_hash, :average, :created_at, :updated_at)
		RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, st)
	if err != nil {
		if isUniqueViolation(err) {
			return student.Student{}, student.ErrLRNExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&st.ID); err != nil {
			return student.Student{}, errors.Wrap(err, "inserting student")
		}
	}
	return st, errors.Wrap(rows.Err(), "inserting student")
}

func studentConditions(filter student.QueryFilter) conditions {
	var cond conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(CONCAT_WS(' ', first_name, middle_name, last_name) ILIKE ? OR lrn ILIKE ?)", pattern, pattern)
	}
	if filter.GradeLevel != 0 {
		cond.add("grade_level = ?", filter.GradeLevel)
	}
	if filter.Section != "" {
		cond.add("LOWER(section) = LOWER(?)", filter.Section)
	}
	return cond
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	cond := studentConditions(filter)
	q := "SELECT " + studentColumns + " FROM students" + cond.where() +
		" ORDER BY " + core.OrderByClause(ordering, "last_name ASC, first_name ASC") + ", id ASC"
	students := make([]student.Student, 0)
	if err := repo.db.SelectContext(ctx, &students, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	var cond conditions
	switch {
	case filter.ID != 0:
		cond.add("id = ?", filter.ID)
	case filter.LRNOrEmail != "":
		cond.add("(lrn = ? OR LOWER(email) = LOWER(?))", filter.LRNOrEmail, filter.LRNOrEmail)
	default:
		return student.Student{}, student.ErrNotFound
	}

	var st student.Student
	if err := repo.db.GetContext(ctx, &st, "SELECT "+studentColumns+" FROM students"+cond.where()+" LIMIT 1", cond.args...); err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "selecting student")
	}
	return st, nil
}

// UpdateStudent updates the profile of a student; the average is only written by grade saves.
func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE students SET lrn = :lrn, first_name = :first_name, middle_name = :middle_name, last_name = :last_name,
			age = :age, sex = :sex, grade_level = :grade_level, section = :section, contact = :contact, email = :email,
			password_hash = :password_hash, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, st)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, student.GetFilter{ID: st.ID})
}

// DeleteStudent deletes a student; grades, grade requests, enrollments and attendance cascade.
func (repo *studentRepository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}
