package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/eskwela/core/attendance"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/student"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) withName(rec attendance.Record) attendance.Record {
	if st, ok := repo.db.students[rec.StudentID]; ok {
		rec.StudentName = st.FullName()
	}
	return rec
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records ...attendance.Record) ([]attendance.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	saved := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := repo.db.classes[rec.ClassID]; !ok {
			return nil, class.ErrNotFound
		}
		if _, ok := repo.db.students[rec.StudentID]; !ok {
			return nil, student.ErrNotFound
		}

		var existing *attendance.Record
		for _, other := range repo.db.attendance {
			if other.ClassID == rec.ClassID && other.StudentID == rec.StudentID && other.Date.Equal(rec.Date) {
				existing = other
				break
			}
		}
		if existing != nil {
			existing.Status = rec.Status
			existing.Method = rec.Method
			existing.RecordedAt = rec.RecordedAt
			saved = append(saved, repo.withName(*existing))
			continue
		}
		rec.ID = repo.db.nextID("attendance")
		stored := rec
		repo.db.attendance[rec.ID] = &stored
		saved = append(saved, repo.withName(rec))
	}
	return saved, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.attendance {
		if filter.ClassID != 0 && rec.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != 0 && rec.StudentID != filter.StudentID {
			continue
		}
		if !filter.From.IsZero() && rec.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && rec.Date.After(filter.To) {
			continue
		}
		records = append(records, repo.withName(*rec))
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if c := compareStrings(a.StudentName, b.StudentName); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return records, nil
}
