package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/student"
)

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) GradesOf(ctx context.Context, studentIDs ...int64) ([]grade.Grade, error) {
	grades := make([]grade.Grade, 0)
	if len(studentIDs) == 0 {
		return grades, nil
	}
	q := `SELECT id, student_id, subject, q1::float8 AS q1, q2::float8 AS q2, q3::float8 AS q3, q4::float8 AS q4
		FROM grades WHERE student_id = ANY($1) ORDER BY student_id, LOWER(subject)`
	if err := repo.db.SelectContext(ctx, &grades, q, pq.Int64Array(studentIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	return grades, nil
}

func (repo *gradeRepository) ReplaceGrades(ctx context.Context, studentID int64, grades []grade.Grade, average float64, completedRequestIDs []int64) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.GetContext(ctx, &id, "SELECT id FROM students WHERE id = $1 FOR UPDATE", studentID); err != nil {
			if err == sql.ErrNoRows {
				return student.ErrNotFound
			}
			return errors.Wrap(err, "locking student")
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM grades WHERE student_id = $1", studentID); err != nil {
			return errors.Wrap(err, "deleting grades")
		}
		for _, g := range grades {
			q := "INSERT INTO grades (student_id, subject, q1, q2, q3, q4) VALUES ($1, $2, $3, $4, $5, $6)"
			if _, err := tx.ExecContext(ctx, q, studentID, g.Subject, g.Q1, g.Q2, g.Q3, g.Q4); err != nil {
				return errors.Wrap(err, "inserting grade")
			}
		}

		now := time.Now().UTC()
		q := "UPDATE students SET average = $1, updated_at = $2 WHERE id = $3"
		if _, err := tx.ExecContext(ctx, q, average, now, studentID); err != nil {
			return errors.Wrap(err, "updating average")
		}

		if len(completedRequestIDs) == 0 {
			return nil
		}
		q = "UPDATE grade_requests SET status = $1, updated_at = $2 WHERE id = ANY($3) AND status = $4"
		res, err := tx.ExecContext(ctx, q,
			graderequest.StatusCompleted, now, pq.Int64Array(completedRequestIDs), graderequest.StatusApproved,
		)
		if err != nil {
			return errors.Wrap(err, "completing grade requests")
		}
		if n, err := res.RowsAffected(); err != nil || n != int64(len(completedRequestIDs)) {
			return core.NewConflictError("grade request is no longer approved")
		}
		return nil
	})
}

func (repo *gradeRepository) SetAverages(ctx context.Context, averages map[int64]float64) error {
	if len(averages) == 0 {
		return nil
	}
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, "UPDATE students SET average = $1 WHERE id = $2")
		if err != nil {
			return errors.Wrap(err, "preparing average update")
		}
		defer func() { _ = stmt.Close() }()

		for id, avg := range averages {
			if _, err = stmt.ExecContext(ctx, avg, id); err != nil {
				return errors.Wrap(err, "updating average")
			}
		}
		return nil
	})
}
