package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/graderequest"
)

type gradeRequestRepository struct {
	db *DB
}

var _ graderequest.Repository = (*gradeRequestRepository)(nil) // interface compliance check

func NewGradeRequestRepository(db *DB) *gradeRequestRepository {
	return &gradeRequestRepository{db: db}
}

// withNames returns a copy of gr with the names of its teacher and student; callers hold the lock.
func (repo *gradeRequestRepository) withNames(gr graderequest.GradeRequest) graderequest.GradeRequest {
	if t, ok := repo.db.teachers[gr.TeacherID]; ok {
		gr.TeacherName = t.FullName()
	}
	if st, ok := repo.db.students[gr.StudentID]; ok {
		gr.StudentName = st.FullName()
	}
	return gr
}

func (repo *gradeRequestRepository) CreateGradeRequest(_ context.Context, gr graderequest.GradeRequest) (graderequest.GradeRequest, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.gradeRequests {
		if other.Status == graderequest.StatusPending && other.TeacherID == gr.TeacherID &&
			other.StudentID == gr.StudentID && other.Quarter == gr.Quarter {
			return graderequest.GradeRequest{}, core.NewConflictError(graderequest.ErrPendingExists.Error())
		}
	}
	gr.ID = repo.db.nextID("grade_requests")
	repo.db.gradeRequests[gr.ID] = &gr
	return repo.withNames(gr), nil
}

func (repo *gradeRequestRepository) HasPending(_ context.Context, teacherID, studentID int64, quarter int) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, gr := range repo.db.gradeRequests {
		if gr.Status == graderequest.StatusPending && gr.TeacherID == teacherID &&
			gr.StudentID == studentID && gr.Quarter == quarter {
			return true, nil
		}
	}
	return false, nil
}

func (repo *gradeRequestRepository) QueryGradeRequests(_ context.Context, filter graderequest.QueryFilter, ordering []core.DBOrdering) ([]graderequest.GradeRequest, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]graderequest.GradeRequest, 0)
	for _, gr := range repo.db.gradeRequests {
		if filter.TeacherID != 0 && gr.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != 0 && gr.StudentID != filter.StudentID {
			continue
		}
		if filter.Quarter != 0 && gr.Quarter != filter.Quarter {
			continue
		}
		if filter.Status != "" && gr.Status != filter.Status {
			continue
		}
		reqs = append(reqs, repo.withNames(*gr))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "gr.created_at", Ascending: false}}
	}
	sort.Slice(reqs, lessFunc(ordering, func(i, j int, field string) int {
		a, b := reqs[i], reqs[j]
		switch field {
		case "gr.quarter":
			return compareInts(int64(a.Quarter), int64(b.Quarter))
		case "gr.status":
			return compareStrings(a.Status, b.Status)
		case "gr.created_at":
			if c := compareTimes(a.CreatedAt, b.CreatedAt); c != 0 {
				return c
			}
			return compareInts(a.ID, b.ID)
		case "gr.updated_at":
			return compareTimes(a.UpdatedAt, b.UpdatedAt)
		default:
			return compareInts(a.ID, b.ID)
		}
	}, func(i int) int64 { return reqs[i].ID }))
	return reqs, nil
}

func (repo *gradeRequestRepository) GetGradeRequest(_ context.Context, id int64) (graderequest.GradeRequest, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if gr, ok := repo.db.gradeRequests[id]; ok {
		return repo.withNames(*gr), nil
	}
	return graderequest.GradeRequest{}, graderequest.ErrNotFound
}

func (repo *gradeRequestRepository) DecideGradeRequest(_ context.Context, id int64, status, note string, at time.Time) (graderequest.GradeRequest, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	gr, ok := repo.db.gradeRequests[id]
	if !ok {
		return graderequest.GradeRequest{}, graderequest.ErrNotFound
	}
	if gr.Status != graderequest.StatusPending {
		return repo.withNames(*gr), graderequest.ErrAlreadyDecided
	}
	gr.Status = status
	gr.AdminNote = note
	gr.UpdatedAt = at
	return repo.withNames(*gr), nil
}

func (repo *gradeRequestRepository) CountPending(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, gr := range repo.db.gradeRequests {
		if gr.Status == graderequest.StatusPending {
			n++
		}
	}
	return n, nil
}
