package grade

import (
	"fmt"
	"time"
)

// Quarter is a grading period, 1 to 4.
type Quarter int

// NoQuarter is the current quarter of a student whose four quarters are all filled.
const NoQuarter Quarter = 5

type QuarterStatus string

const (
	StatusEditable     QuarterStatus = "Editable"
	StatusPending      QuarterStatus = "Pending"
	StatusSubmitted    QuarterStatus = "Submitted"
	StatusNotSubmitted QuarterStatus = "Not Submitted"
)

// Calendar maps dates to quarters from the month each quarter starts on.
type Calendar struct {
	startMonths [4]time.Month
}

// DefaultStartMonths: Q1 Jun-Aug, Q2 Sep-Nov, Q3 Dec-Feb, Q4 Mar-May.
var DefaultStartMonths = []int{6, 9, 12, 3}

func NewCalendar(startMonths []int) (Calendar, error) {
	var cal Calendar
	if len(startMonths) != 4 {
		return cal, fmt.Errorf("expected 4 quarter start months, got %d", len(startMonths))
	}
	seen := make(map[int]bool, 4)
	for i, m := range startMonths {
		if m < 1 || m > 12 {
			return cal, fmt.Errorf("invalid quarter start month: %d", m)
		}
		if seen[m] {
			return cal, fmt.Errorf("duplicate quarter start month: %d", m)
		}
		seen[m] = true
		cal.startMonths[i] = time.Month(m)
	}
	return cal, nil
}

// QuarterForDate returns the quarter whose start month most recently preceded t.
func (cal Calendar) QuarterForDate(t time.Time) Quarter {
	best, bestOffset := Quarter(1), 12
	for i, start := range cal.startMonths {
		offset := (int(t.Month()) - int(start) + 12) % 12
		if offset < bestOffset {
			best, bestOffset = Quarter(i+1), offset
		}
	}
	return best
}

// CurrentQuarter returns the first quarter some subject of grades has not been graded for,
// NoQuarter once all four are filled, or the quarter of now when there are no grades.
func (cal Calendar) CurrentQuarter(grades []Grade, now time.Time) Quarter {
	if len(grades) == 0 {
		return cal.QuarterForDate(now)
	}
	for q := Quarter(1); q <= 4; q++ {
		for _, g := range grades {
			if !g.Quarter(q).Valid {
				return q
			}
		}
	}
	return NoQuarter
}

// QuarterStatusFor returns the status of quarter q of a subject.
func QuarterStatusFor(q, current Quarter, filled, pending bool) QuarterStatus {
	switch {
	case q == current:
		return StatusEditable
	case pending:
		return StatusPending
	case filled:
		return StatusSubmitted
	default:
		return StatusNotSubmitted
	}
}

type SubjectLock struct {
	Subject  string                   `json:"subject"`
	Statuses map[string]QuarterStatus `json:"statuses"` // {"q1": "Submitted", ...}
}

// Lock describes which quarters of a student's grades may be edited by teachers.
type Lock struct {
	StudentID        int64         `json:"student_id"`
	CurrentQuarter   Quarter       `json:"current_quarter"`
	PendingQuarters  []Quarter     `json:"pending_quarters"`
	ApprovedQuarters []Quarter     `json:"approved_quarters"`
	Subjects         []SubjectLock `json:"subjects"`
}

func newLock(studentID int64, current Quarter, grades []Grade, pending, approved map[Quarter]bool) Lock {
	lock := Lock{
		StudentID:        studentID,
		CurrentQuarter:   current,
		PendingQuarters:  sortedQuarters(pending),
		ApprovedQuarters: sortedQuarters(approved),
		Subjects:         make([]SubjectLock, 0, len(grades)),
	}
	for _, g := range grades {
		sl := SubjectLock{Subject: g.Subject, Statuses: make(map[string]QuarterStatus, 4)}
		for q := Quarter(1); q <= 4; q++ {
			status := QuarterStatusFor(q, current, g.Quarter(q).Valid, pending[q])
			if approved[q] {
				status = StatusEditable
			}
			sl.Statuses[fmt.Sprintf("q%d", q)] = status
		}
		lock.Subjects = append(lock.Subjects, sl)
	}
	return lock
}

func sortedQuarters(set map[Quarter]bool) []Quarter {
	qs := make([]Quarter, 0, len(set))
	for q := Quarter(1); q <= 4; q++ {
		if set[q] {
			qs = append(qs, q)
		}
	}
	return qs
}
