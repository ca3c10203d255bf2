package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/graderequest"
)

const gradeRequestSelect = `SELECT gr.id, gr.teacher_id, CONCAT_WS(' ', t.first_name, t.last_name) AS teacher_name,
		gr.student_id, CONCAT_WS(' ', s.first_name, NULLIF(s.middle_name, ''), s.last_name) AS student_name,
		gr.quarter, gr.reason, gr.status, gr.admin_note, gr.created_at, gr.updated_at
	FROM grade_requests gr
	JOIN teachers t ON t.id = gr.teacher_id
	JOIN students s ON s.id = gr.student_id`

type gradeRequestRepository struct {
	db *sqlx.DB
}

var _ graderequest.Repository = (*gradeRequestRepository)(nil) // interface compliance check

func NewGradeRequestRepository(db *sqlx.DB) *gradeRequestRepository {
	return &gradeRequestRepository{db: db}
}

func (repo *gradeRequestRepository) CreateGradeRequest(ctx context.Context, gr graderequest.GradeRequest) (graderequest.GradeRequest, error) {
	q := `INSERT INTO grade_requests (teacher_id, student_id, quarter, reason, status, admin_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, q,
		gr.TeacherID, gr.StudentID, gr.Quarter, gr.Reason, gr.Status, gr.AdminNote, gr.CreatedAt, gr.UpdatedAt,
	).Scan(&gr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return graderequest.GradeRequest{}, core.NewConflictError(graderequest.ErrPendingExists.Error())
		}
		return graderequest.GradeRequest{}, errors.Wrap(err, "inserting grade request")
	}
	return repo.GetGradeRequest(ctx, gr.ID)
}

func (repo *gradeRequestRepository) HasPending(ctx context.Context, teacherID, studentID int64, quarter int) (bool, error) {
	var found bool
	q := `SELECT EXISTS (SELECT 1 FROM grade_requests
		WHERE teacher_id = $1 AND student_id = $2 AND quarter = $3 AND status = $4)`
	if err := repo.db.GetContext(ctx, &found, q, teacherID, studentID, quarter, graderequest.StatusPending); err != nil {
		return false, errors.Wrap(err, "checking pending grade requests")
	}
	return found, nil
}

func (repo *gradeRequestRepository) QueryGradeRequests(ctx context.Context, filter graderequest.QueryFilter, ordering []core.DBOrdering) ([]graderequest.GradeRequest, error) {
	var cond conditions
	if filter.TeacherID != 0 {
		cond.add("gr.teacher_id = ?", filter.TeacherID)
	}
	if filter.StudentID != 0 {
		cond.add("gr.student_id = ?", filter.StudentID)
	}
	if filter.Quarter != 0 {
		cond.add("gr.quarter = ?", filter.Quarter)
	}
	if filter.Status != "" {
		cond.add("gr.status = ?", filter.Status)
	}

	q := gradeRequestSelect + cond.where() + " ORDER BY " + core.OrderByClause(ordering, "gr.created_at DESC") + ", gr.id DESC"
	reqs := make([]graderequest.GradeRequest, 0)
	if err := repo.db.SelectContext(ctx, &reqs, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting grade requests")
	}
	return reqs, nil
}

func (repo *gradeRequestRepository) GetGradeRequest(ctx context.Context, id int64) (graderequest.GradeRequest, error) {
	var gr graderequest.GradeRequest
	if err := repo.db.GetContext(ctx, &gr, gradeRequestSelect+" WHERE gr.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return graderequest.GradeRequest{}, graderequest.ErrNotFound
		}
		return graderequest.GradeRequest{}, errors.Wrap(err, "selecting grade request")
	}
	return gr, nil
}

func (repo *gradeRequestRepository) DecideGradeRequest(ctx context.Context, id int64, status, note string, at time.Time) (graderequest.GradeRequest, error) {
	q := "UPDATE grade_requests SET status = $1, admin_note = $2, updated_at = $3 WHERE id = $4 AND status = $5"
	res, err := repo.db.ExecContext(ctx, q, status, note, at, id, graderequest.StatusPending)
	if err != nil {
		return graderequest.GradeRequest{}, errors.Wrap(err, "deciding grade request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return graderequest.GradeRequest{}, errors.Wrap(err, "deciding grade request")
	}

	gr, err := repo.GetGradeRequest(ctx, id)
	if err != nil {
		return graderequest.GradeRequest{}, err
	}
	if n == 0 {
		return gr, graderequest.ErrAlreadyDecided
	}
	return gr, nil
}

func (repo *gradeRequestRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	q := "SELECT COUNT(*) FROM grade_requests WHERE status = $1"
	if err := repo.db.GetContext(ctx, &count, q, graderequest.StatusPending); err != nil {
		return 0, errors.Wrap(err, "counting grade requests")
	}
	return count, nil
}
