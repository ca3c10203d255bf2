package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/attendance"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
)

// DB is an in-memory database holding every table behind one lock,
// so that multi-table operations are atomic.
type DB struct {
	mu  sync.RWMutex
	seq map[string]int64

	users         map[int64]*user.User
	students      map[int64]*student.Student
	teachers      map[int64]*teacher.Teacher
	grades        map[int64][]grade.Grade // by student ID
	gradeRequests map[int64]*graderequest.GradeRequest
	notifications map[int64]*notification.Notification
	classes       map[int64]*class.Class
	enrollments   map[int64]map[int64]time.Time // class ID -> student ID -> enrolled at
	attendance    map[int64]*attendance.Record
}

func Open() *DB {
	return &DB{
		seq:           make(map[string]int64),
		users:         make(map[int64]*user.User),
		students:      make(map[int64]*student.Student),
		teachers:      make(map[int64]*teacher.Teacher),
		grades:        make(map[int64][]grade.Grade),
		gradeRequests: make(map[int64]*graderequest.GradeRequest),
		notifications: make(map[int64]*notification.Notification),
		classes:       make(map[int64]*class.Class),
		enrollments:   make(map[int64]map[int64]time.Time),
		attendance:    make(map[int64]*attendance.Record),
	}
}

// nextID returns the next primary key of table; callers hold the write lock.
func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// lessFunc builds a sort.Slice less function applying ordering through cmp,
// then falling back to ascending IDs.
func lessFunc(ordering []core.DBOrdering, cmp func(i, j int, field string) int, ids func(i int) int64) func(i, j int) bool {
	return func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(i, j, ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return ids(i) < ids(j)
	}
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
