package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/student"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) GradesOf(_ context.Context, studentIDs ...int64) ([]grade.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := append([]int64{}, studentIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	grades := make([]grade.Grade, 0)
	for _, id := range ids {
		rows := append([]grade.Grade{}, repo.db.grades[id]...)
		sort.Slice(rows, func(i, j int) bool { return strings.ToLower(rows[i].Subject) < strings.ToLower(rows[j].Subject) })
		grades = append(grades, rows...)
	}
	return grades, nil
}

func (repo *gradeRepository) ReplaceGrades(_ context.Context, studentID int64, grades []grade.Grade, average float64, completedRequestIDs []int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st, ok := repo.db.students[studentID]
	if !ok {
		return student.ErrNotFound
	}
	for _, id := range completedRequestIDs {
		if gr, ok := repo.db.gradeRequests[id]; !ok || gr.Status != graderequest.StatusApproved {
			return core.NewConflictError("grade request is no longer approved")
		}
	}

	now := time.Now().UTC()
	rows := make([]grade.Grade, 0, len(grades))
	for _, g := range grades {
		g.ID = repo.db.nextID("grades")
		g.StudentID = studentID
		rows = append(rows, g)
	}
	repo.db.grades[studentID] = rows
	st.Average = average
	st.UpdatedAt = now
	for _, id := range completedRequestIDs {
		gr := repo.db.gradeRequests[id]
		gr.Status = graderequest.StatusCompleted
		gr.UpdatedAt = now
	}
	return nil
}

func (repo *gradeRepository) SetAverages(_ context.Context, averages map[int64]float64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, avg := range averages {
		if st, ok := repo.db.students[id]; ok {
			st.Average = avg
		}
	}
	return nil
}
