package student

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("student")
	ErrLRNExists   = errors.New("a student with this LRN already exists")
	ErrEmailExists = errors.New("a student with this email already exists")
)

type (
	// GetFilter selects a single Student; only one field is expected to be set.
	GetFilter struct {
		ID         int64
		LRNOrEmail string
	}

	Repository interface {
		// CheckUniqueness returns ErrLRNExists or ErrEmailExists when another Student
		// (other than the one with excludeID) already uses the given LRN or email.
		CheckUniqueness(ctx context.Context, lrn, email string, excludeID int64) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names or the LRN.
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudent(ctx context.Context, id int64) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, lrn, email string, excludeID int64) error {
	if err := svc.repo.CheckUniqueness(ctx, lrn, email, excludeID); err != nil {
		var field string
		switch err {
		case ErrLRNExists:
			field = "lrn"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create creates a validated NewStudent.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkUniqueness(ctx, ns.LRN, ns.Email, 0); err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	st := Student{
		LRN:        ns.LRN,
		FirstName:  ns.FirstName,
		MiddleName: ns.MiddleName,
		LastName:   ns.LastName,
		Age:        ns.Age,
		Sex:        ns.Sex,
		GradeLevel: ns.GradeLevel,
		Section:    ns.Section,
		Contact:    ns.Contact,
		Email:      null.NewString(ns.Email, ns.Email != ""),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.SetPassword(ns.Password); err != nil {
		return Student{}, err
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, core.SanitizeOrderings(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

// Update applies a validated UpdateStudent to st.
func (svc *Service) Update(ctx context.Context, st Student, us UpdateStudent) (Student, error) {
	us.apply(&st)
	if err := svc.checkUniqueness(ctx, st.LRN, st.Email.String, st.ID); err != nil {
		return Student{}, err
	}
	if us.Password != "" {
		if err := st.SetPassword(us.Password); err != nil {
			return Student{}, err
		}
	}
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteStudent(ctx, id)
}

// Authenticate checks the credentials of a student, identified by LRN or email.
func (svc *Service) Authenticate(ctx context.Context, login, pwd string) (Student, error) {
	st, err := svc.repo.GetStudent(ctx, GetFilter{LRNOrEmail: core.CleanString(login, true /* lower */)})
	if err != nil {
		if core.IsNotFound(err) {
			return Student{}, account.ErrInvalidCredentials
		}
		return Student{}, err
	}
	if err = st.CheckPassword(pwd); err != nil {
		return Student{}, err
	}
	return st, nil
}
