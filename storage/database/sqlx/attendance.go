package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/attendance"
)

const attendanceSelect = `SELECT a.id, a.class_id, a.student_id, CONCAT_WS(' ', s.first_name, NULLIF(s.middle_name, ''), s.last_name) AS student_name,
		a.date, a.status, a.method, a.recorded_at
	FROM attendance_records a
	JOIN students s ON s.id = a.student_id`

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records ...attendance.Record) ([]attendance.Record, error) {
	saved := make([]attendance.Record, 0, len(records))
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO attendance_records (class_id, student_id, date, status, method, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (class_id, student_id, date)
			DO UPDATE SET status = EXCLUDED.status, method = EXCLUDED.method, recorded_at = EXCLUDED.recorded_at
			RETURNING id`
		for _, rec := range records {
			err := tx.QueryRowxContext(ctx, q,
				rec.ClassID, rec.StudentID, rec.Date, rec.Status, rec.Method, rec.RecordedAt,
			).Scan(&rec.ID)
			if err != nil {
				return errors.Wrap(err, "upserting attendance")
			}

			var name string
			nameQ := "SELECT CONCAT_WS(' ', first_name, NULLIF(middle_name, ''), last_name) FROM students WHERE id = $1"
			if err = tx.GetContext(ctx, &name, nameQ, rec.StudentID); err != nil {
				return errors.Wrap(err, "selecting student name")
			}
			rec.StudentName = name
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	var cond conditions
	if filter.ClassID != 0 {
		cond.add("a.class_id = ?", filter.ClassID)
	}
	if filter.StudentID != 0 {
		cond.add("a.student_id = ?", filter.StudentID)
	}
	if !filter.From.IsZero() {
		cond.add("a.date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		cond.add("a.date <= ?", filter.To)
	}

	q := attendanceSelect + cond.where() + " ORDER BY a.date, student_name, a.id"
	records := make([]attendance.Record, 0)
	if err := repo.db.SelectContext(ctx, &records, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	return records, nil
}
