package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/class"
)

type Repository interface {
	// UpsertRecords creates the records, or updates the status and method of the
	// existing record of the same class, student and date.
	UpsertRecords(ctx context.Context, records ...Record) ([]Record, error)
	// QueryRecords returns the matching records ordered by date, then student name.
	QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
}

type Service struct {
	repo      Repository
	store     CodeStore
	classSvc  *class.Service
	ttl       time.Duration
	lateAfter time.Duration
	nowFunc   func() time.Time
}

func NewService(repo Repository, store CodeStore, classSvc *class.Service, conf core.AttendanceConfig) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		classSvc:  classSvc,
		ttl:       conf.CheckInTTL,
		lateAfter: conf.LateAfter,
		nowFunc:   time.Now,
	}
}

// OpenCheckIn opens a check-in session on a class the staff member p manages.
func (svc *Service) OpenCheckIn(ctx context.Context, p account.Principal, classID int64) (Session, error) {
	c, err := svc.classSvc.GetByID(ctx, classID)
	if err != nil {
		return Session{}, err
	}
	if err = class.CheckManager(p, c); err != nil {
		return Session{}, err
	}

	now := svc.nowFunc().UTC()
	s := Session{
		Code:      uuid.NewString(),
		ClassID:   c.ID,
		OpenedBy:  p.ID,
		OpenedAt:  now,
		ExpiresAt: now.Add(svc.ttl),
	}
	if err = svc.store.SaveSession(ctx, s, svc.ttl); err != nil {
		return Session{}, errors.Wrap(err, "saving check-in session")
	}
	return s, nil
}

// CheckIn marks the student p present in the class of the session matching code,
// or late once lateAfter has elapsed since the session opened.
func (svc *Service) CheckIn(ctx context.Context, p account.Principal, ci CheckIn) (Record, error) {
	if !p.IsStudent() {
		return Record{}, core.NewPermissionError("only students can check in")
	}

	s, err := svc.store.GetSession(ctx, ci.Code)
	if err != nil {
		if err == ErrSessionNotFound {
			return Record{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Record{}, errors.Wrap(err, "getting check-in session")
	}

	now := svc.nowFunc().UTC()
	if now.After(s.ExpiresAt) {
		return Record{}, core.NewValidationError(ErrSessionNotFound, core.FieldError{Field: "code", Error: ErrSessionNotFound.Error()})
	}
	enrolled, err := svc.classSvc.IsEnrolled(ctx, s.ClassID, p.ID)
	if err != nil {
		return Record{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Record{}, core.NewPermissionError("you are not enrolled in this class")
	}

	status := StatusPresent
	if now.Sub(s.OpenedAt) > svc.lateAfter {
		status = StatusLate
	}
	records, err := svc.repo.UpsertRecords(ctx, Record{
		ClassID:    s.ClassID,
		StudentID:  p.ID,
		Date:       dateOf(s.OpenedAt),
		Status:     status,
		Method:     MethodQR,
		RecordedAt: now,
	})
	if err != nil {
		return Record{}, errors.Wrap(err, "recording attendance")
	}
	return records[0], nil
}

// Record stores validated manual statuses of students enrolled in a class managed by p.
func (svc *Service) Record(ctx context.Context, p account.Principal, classID int64, mr ManualRecords) ([]Record, error) {
	c, err := svc.classSvc.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err = class.CheckManager(p, c); err != nil {
		return nil, err
	}
	date, err := ParseDate(mr.Date)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}

	now := svc.nowFunc().UTC()
	records := make([]Record, 0, len(mr.Entries))
	for i, e := range mr.Entries {
		enrolled, err := svc.classSvc.IsEnrolled(ctx, c.ID, e.StudentID)
		if err != nil {
			return nil, errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("entries[%d].student_id", i),
				Error: "student is not enrolled in this class",
			})
		}
		records = append(records, Record{
			ClassID:    c.ID,
			StudentID:  e.StudentID,
			Date:       date,
			Status:     e.Status,
			Method:     MethodManual,
			RecordedAt: now,
		})
	}
	return svc.repo.UpsertRecords(ctx, records...)
}

// ClassRecords returns the records of a class on a date (every date when zero).
func (svc *Service) ClassRecords(ctx context.Context, p account.Principal, classID int64, date time.Time) ([]Record, error) {
	c, err := svc.classSvc.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err = class.CheckManager(p, c); err != nil {
		return nil, err
	}
	return svc.repo.QueryRecords(ctx, QueryFilter{ClassID: c.ID, From: date, To: date})
}

// StudentRecords returns the records of a student between from and to (unbounded when zero).
func (svc *Service) StudentRecords(ctx context.Context, studentID int64, from, to time.Time) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, QueryFilter{StudentID: studentID, From: from, To: to})
}
