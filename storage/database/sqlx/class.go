package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/student"
)

const classSelect = `SELECT c.id, c.name, c.grade_level, c.section, c.school_year, c.teacher_id, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM class_enrollments e WHERE e.class_id = c.id) AS student_count
	FROM classes c`

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CheckNameUniqueness(ctx context.Context, name, schoolYear string, excludeID int64) error {
	var taken bool
	q := "SELECT EXISTS (SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1) AND school_year = $2 AND id <> $3)"
	if err := repo.db.GetContext(ctx, &taken, q, name, schoolYear, excludeID); err != nil {
		return errors.Wrap(err, "checking class name uniqueness")
	}
	if taken {
		return class.ErrNameExists
	}
	return nil
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	q := `INSERT INTO classes (name, grade_level, section, school_year, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q,
		c.Name, c.GradeLevel, c.Section, c.SchoolYear, c.TeacherID, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return class.Class{}, class.ErrNameExists
		}
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	c.StudentCount = 0
	return c, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	var cond conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		cond.add("(c.name ILIKE ? OR c.section ILIKE ?)", pattern, pattern)
	}
	if filter.GradeLevel != 0 {
		cond.add("c.grade_level = ?", filter.GradeLevel)
	}
	if filter.Section != "" {
		cond.add("LOWER(c.section) = LOWER(?)", filter.Section)
	}
	if filter.SchoolYear != "" {
		cond.add("c.school_year = ?", filter.SchoolYear)
	}
	if filter.TeacherID != 0 {
		cond.add("c.teacher_id = ?", filter.TeacherID)
	}
	if filter.StudentID != 0 {
		cond.add("EXISTS (SELECT 1 FROM class_enrollments e WHERE e.class_id = c.id AND e.student_id = ?)", filter.StudentID)
	}

	q := classSelect + cond.where() + " ORDER BY " + core.OrderByClause(ordering, "c.school_year DESC, c.name ASC") + ", c.id ASC"
	classes := make([]class.Class, 0)
	if err := repo.db.SelectContext(ctx, &classes, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int64) (class.Class, error) {
	var c class.Class
	if err := repo.db.GetContext(ctx, &c, classSelect+" WHERE c.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "selecting class")
	}
	return c, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	q := `UPDATE classes SET name = $1, grade_level = $2, section = $3, school_year = $4, teacher_id = $5, updated_at = $6
		WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, q, c.Name, c.GradeLevel, c.Section, c.SchoolYear, c.TeacherID, c.UpdatedAt, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return class.Class{}, class.ErrNameExists
		}
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return repo.GetClass(ctx, c.ID)
}

// DeleteClass deletes a class; enrollments and attendance cascade.
func (repo *classRepository) DeleteClass(ctx context.Context, id int64) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	return errors.Wrap(err, "deleting class")
}

func (repo *classRepository) Enroll(ctx context.Context, classID int64, studentIDs []int64, at time.Time) error {
	q := `INSERT INTO class_enrollments (class_id, student_id, enrolled_at)
		SELECT $1, UNNEST($2::bigint[]), $3
		ON CONFLICT (class_id, student_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, classID, pq.Int64Array(studentIDs), at); err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return nil
}

func (repo *classRepository) Unenroll(ctx context.Context, classID int64, studentIDs ...int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	q := "DELETE FROM class_enrollments WHERE class_id = $1 AND student_id = ANY($2)"
	_, err := repo.db.ExecContext(ctx, q, classID, pq.Int64Array(studentIDs))
	return errors.Wrap(err, "unenrolling students")
}

func (repo *classRepository) ClassStudents(ctx context.Context, classID int64) ([]student.Student, error) {
	q := `SELECT s.id, s.lrn, s.first_name, s.middle_name, s.last_name, s.age, s.sex, s.grade_level, s.section, s.contact,
			s.email, s.password_hash, s.average::float8 AS average, s.created_at, s.updated_at
		FROM students s
		JOIN class_enrollments e ON e.student_id = s.id
		WHERE e.class_id = $1
		ORDER BY s.last_name, s.first_name, s.id`
	students := make([]student.Student, 0)
	if err := repo.db.SelectContext(ctx, &students, q, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class students")
	}
	return students, nil
}

func (repo *classRepository) IsEnrolled(ctx context.Context, classID, studentID int64) (bool, error) {
	var found bool
	q := "SELECT EXISTS (SELECT 1 FROM class_enrollments WHERE class_id = $1 AND student_id = $2)"
	if err := repo.db.GetContext(ctx, &found, q, classID, studentID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return found, nil
}
