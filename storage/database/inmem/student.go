package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, lrn, email string, excludeID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, st := range repo.db.students {
		if st.ID == excludeID {
			continue
		}
		if lrn != "" && st.LRN == lrn {
			return student.ErrLRNExists
		}
		if email != "" && st.Email.Valid && st.Email.String == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st.ID = repo.db.nextID("students")
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.db.queryStudents(filter, ordering), nil
}

// queryStudents filters and sorts students; callers hold the lock.
func (db *DB) queryStudents(filter student.QueryFilter, ordering []core.DBOrdering) []student.Student {
	students := make([]student.Student, 0, len(db.students))
	for _, st := range db.students {
		if filter.Search != "" &&
			!(containsFold(st.FullName(), filter.Search) || containsFold(st.LRN, filter.Search)) {
			continue
		}
		if filter.GradeLevel != 0 && st.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.Section != "" && !equalFold(st.Section, filter.Section) {
			continue
		}
		students = append(students, *st)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}}
	}
	sort.Slice(students, lessFunc(ordering, func(i, j int, field string) int {
		a, b := students[i], students[j]
		switch field {
		case "lrn":
			return compareStrings(a.LRN, b.LRN)
		case "first_name":
			return compareStrings(a.FirstName, b.FirstName)
		case "last_name":
			return compareStrings(a.LastName, b.LastName)
		case "grade_level":
			return compareInts(int64(a.GradeLevel), int64(b.GradeLevel))
		case "section":
			return compareStrings(a.Section, b.Section)
		case "average":
			return compareFloats(a.Average, b.Average)
		case "created_at":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		default:
			return compareInts(a.ID, b.ID)
		}
	}, func(i int) int64 { return students[i].ID }))
	return students
}

func equalFold(a, b string) bool {
	return compareStrings(a, b) == 0
}

func (repo *studentRepository) GetStudent(_ context.Context, filter student.GetFilter) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != 0 {
		if st, ok := repo.db.students[filter.ID]; ok {
			return *st, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	if filter.LRNOrEmail != "" {
		for _, st := range repo.db.students {
			if st.LRN == filter.LRNOrEmail || (st.Email.Valid && st.Email.String == filter.LRNOrEmail) {
				return *st, nil
			}
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.students[st.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.Average = orig.Average // only written by grade saves
	repo.db.students[st.ID] = &st
	return st, nil
}

// DeleteStudent deletes a student along with their grades, grade requests, enrollments and attendance.
func (repo *studentRepository) DeleteStudent(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	delete(repo.db.grades, id)
	for rid, gr := range repo.db.gradeRequests {
		if gr.StudentID == id {
			delete(repo.db.gradeRequests, rid)
		}
	}
	for _, enrolled := range repo.db.enrollments {
		delete(enrolled, id)
	}
	for rid, rec := range repo.db.attendance {
		if rec.StudentID == id {
			delete(repo.db.attendance, rid)
		}
	}
	return nil
}

func sortStudentsByName(students []student.Student) {
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if c := compareStrings(a.LastName, b.LastName); c != 0 {
			return c < 0
		}
		if c := compareStrings(a.FirstName, b.FirstName); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
