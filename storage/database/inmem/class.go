package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/student"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

// withCount returns a copy of c with its student count; callers hold the lock.
func (repo *classRepository) withCount(c class.Class) class.Class {
	c.StudentCount = len(repo.db.enrollments[c.ID])
	return c
}

func (repo *classRepository) CheckNameUniqueness(_ context.Context, name, schoolYear string, excludeID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.classes {
		if c.ID != excludeID && c.SchoolYear == schoolYear && strings.EqualFold(c.Name, name) {
			return class.ErrNameExists
		}
	}
	return nil
}

func (repo *classRepository) CreateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.nextID("classes")
	c.StudentCount = 0
	repo.db.classes[c.ID] = &c
	return c, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, c := range repo.db.classes {
		if filter.Search != "" && !containsFold(c.Name, filter.Search) && !containsFold(c.Section, filter.Search) {
			continue
		}
		if filter.GradeLevel != 0 && c.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.Section != "" && !strings.EqualFold(c.Section, filter.Section) {
			continue
		}
		if filter.SchoolYear != "" && c.SchoolYear != filter.SchoolYear {
			continue
		}
		if filter.TeacherID != 0 && (!c.TeacherID.Valid || c.TeacherID.Int64 != filter.TeacherID) {
			continue
		}
		if filter.StudentID != 0 {
			if _, ok := repo.db.enrollments[c.ID][filter.StudentID]; !ok {
				continue
			}
		}
		classes = append(classes, repo.withCount(*c))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "c.school_year", Ascending: false}, {Field: "c.name", Ascending: true}}
	}
	sort.Slice(classes, lessFunc(ordering, func(i, j int, field string) int {
		a, b := classes[i], classes[j]
		switch field {
		case "c.name":
			return compareStrings(a.Name, b.Name)
		case "c.grade_level":
			return compareInts(int64(a.GradeLevel), int64(b.GradeLevel))
		case "c.section":
			return compareStrings(a.Section, b.Section)
		case "c.school_year":
			return compareStrings(a.SchoolYear, b.SchoolYear)
		case "c.created_at":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		default:
			return compareInts(a.ID, b.ID)
		}
	}, func(i int) int64 { return classes[i].ID }))
	return classes, nil
}

func (repo *classRepository) GetClass(_ context.Context, id int64) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return repo.withCount(*c), nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.classes[c.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	c.CreatedAt = orig.CreatedAt
	*orig = c
	return repo.withCount(c), nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.classes, id)
	delete(repo.db.enrollments, id)
	for rid, rec := range repo.db.attendance {
		if rec.ClassID == id {
			delete(repo.db.attendance, rid)
		}
	}
	return nil
}

func (repo *classRepository) Enroll(_ context.Context, classID int64, studentIDs []int64, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return class.ErrNotFound
	}
	for _, id := range studentIDs {
		if _, ok := repo.db.students[id]; !ok {
			return student.ErrNotFound
		}
	}
	enrolled, ok := repo.db.enrollments[classID]
	if !ok {
		enrolled = make(map[int64]time.Time)
		repo.db.enrollments[classID] = enrolled
	}
	for _, id := range studentIDs {
		if _, ok := enrolled[id]; !ok {
			enrolled[id] = at
		}
	}
	return nil
}

func (repo *classRepository) Unenroll(_ context.Context, classID int64, studentIDs ...int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range studentIDs {
		delete(repo.db.enrollments[classID], id)
	}
	return nil
}

func (repo *classRepository) ClassStudents(_ context.Context, classID int64) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.enrollments[classID]))
	for id := range repo.db.enrollments[classID] {
		if st, ok := repo.db.students[id]; ok {
			students = append(students, *st)
		}
	}
	sortStudentsByName(students)
	return students, nil
}

func (repo *classRepository) IsEnrolled(_ context.Context, classID, studentID int64) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.enrollments[classID][studentID]
	return ok, nil
}
