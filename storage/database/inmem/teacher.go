package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CheckEmailUniqueness(_ context.Context, email string, excludeID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, t := range repo.db.teachers {
		if t.ID != excludeID && t.Email == email {
			return teacher.ErrEmailExists
		}
	}
	return nil
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = repo.db.nextID("teachers")
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter teacher.QueryFilter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	teachers := make([]teacher.Teacher, 0, len(repo.db.teachers))
	for _, t := range repo.db.teachers {
		if filter.Search != "" &&
			!(containsFold(t.FullName(), filter.Search) || containsFold(t.Email, filter.Search) || containsFold(t.EmployeeID, filter.Search)) {
			continue
		}
		if filter.Status != "" && t.VerificationStatus != filter.Status {
			continue
		}
		if filter.Department != "" && !equalFold(t.Department, filter.Department) {
			continue
		}
		teachers = append(teachers, *t)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}}
	}
	sort.Slice(teachers, lessFunc(ordering, func(i, j int, field string) int {
		a, b := teachers[i], teachers[j]
		switch field {
		case "employee_id":
			return compareStrings(a.EmployeeID, b.EmployeeID)
		case "first_name":
			return compareStrings(a.FirstName, b.FirstName)
		case "last_name":
			return compareStrings(a.LastName, b.LastName)
		case "email":
			return compareStrings(a.Email, b.Email)
		case "department":
			return compareStrings(a.Department, b.Department)
		case "verification_status":
			return compareStrings(a.VerificationStatus, b.VerificationStatus)
		case "created_at":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		default:
			return compareInts(a.ID, b.ID)
		}
	}, func(i int) int64 { return teachers[i].ID }))
	return teachers, nil
}

func (repo *teacherRepository) GetTeacher(_ context.Context, filter teacher.GetFilter) (teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != 0 {
		if t, ok := repo.db.teachers[filter.ID]; ok {
			return *t, nil
		}
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	if filter.Email != "" {
		for _, t := range repo.db.teachers {
			if t.Email == filter.Email {
				return *t, nil
			}
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.teachers[t.ID]
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	t.VerificationStatus = orig.VerificationStatus // only written by SetVerificationStatus
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *teacherRepository) SetVerificationStatus(_ context.Context, id int64, status string) (teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t, ok := repo.db.teachers[id]
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	if t.VerificationStatus != teacher.StatusPending {
		return *t, teacher.ErrAlreadyVerified
	}
	t.VerificationStatus = status
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

func (repo *teacherRepository) SetLastLogin(_ context.Context, id int64, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t, ok := repo.db.teachers[id]
	if !ok {
		return teacher.ErrNotFound
	}
	t.LastLogin = null.TimeFrom(at)
	return nil
}

// DeleteTeacher deletes a teacher along with their grade requests; their classes lose their adviser.
func (repo *teacherRepository) DeleteTeacher(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.teachers[id]; !ok {
		return teacher.ErrNotFound
	}
	delete(repo.db.teachers, id)
	for rid, gr := range repo.db.gradeRequests {
		if gr.TeacherID == id {
			delete(repo.db.gradeRequests, rid)
		}
	}
	for _, c := range repo.db.classes {
		if c.TeacherID.Valid && c.TeacherID.Int64 == id {
			c.TeacherID = null.Int64{}
		}
	}
	return nil
}

func (repo *teacherRepository) CountByStatus(_ context.Context) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int, 3)
	for _, t := range repo.db.teachers {
		counts[t.VerificationStatus]++
	}
	return counts, nil
}
