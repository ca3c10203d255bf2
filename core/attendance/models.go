// Package attendance records class attendance, manually or through short-lived check-in
// codes students scan from a QR code.
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eskwela/core"
)

const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
	StatusExcused = "excused"

	MethodManual = "manual"
	MethodQR     = "qr"

	DateLayout = "2006-01-02"
)

var (
	// errors
	ErrSessionNotFound = errors.New("invalid or expired check-in code")
)

type Record struct {
	ID          int64     `json:"id" db:"id"`
	ClassID     int64     `json:"class_id" db:"class_id"`
	StudentID   int64     `json:"student_id" db:"student_id"`
	StudentName string    `json:"student_name" db:"student_name"`
	Date        time.Time `json:"date" db:"date"`
	Status      string    `json:"status" db:"status"`
	Method      string    `json:"method" db:"method"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
}

// Session is an open check-in of a class; Code is the QR payload.
type Session struct {
	Code      string    `json:"code"`
	ClassID   int64     `json:"class_id"`
	OpenedBy  int64     `json:"opened_by"`
	OpenedAt  time.Time `json:"opened_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeStore keeps check-in sessions until they expire.
type CodeStore interface {
	SaveSession(ctx context.Context, s Session, ttl time.Duration) error
	// GetSession returns ErrSessionNotFound for unknown or expired codes.
	GetSession(ctx context.Context, code string) (Session, error)
}

type CheckIn struct {
	Code string `json:"code" validate:"required"`
}

func (ci *CheckIn) Validate(validate *validator.Validate) error {
	ci.Code = core.CleanString(ci.Code)
	return validate.Struct(ci)
}

type Entry struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=present late absent excused"`
}

// ManualRecords are the statuses of students of a class on a date.
type ManualRecords struct {
	Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []Entry `json:"entries" validate:"required,min=1,dive"`
}

func (mr *ManualRecords) Validate(validate *validator.Validate) error {
	mr.Date = core.CleanString(mr.Date)
	for i := range mr.Entries {
		mr.Entries[i].Status = core.CleanString(mr.Entries[i].Status, true /* lower */)
	}
	return validate.Struct(mr)
}

type QueryFilter struct {
	ClassID   int64
	StudentID int64
	From      time.Time // inclusive
	To        time.Time // inclusive
}

// ParseDate parses a YYYY-MM-DD date; the empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	if s = core.CleanString(s); s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
