package class

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("class")
	ErrNameExists = errors.New("a class with this name already exists for this school year")
)

type Repository interface {
	// CheckNameUniqueness returns ErrNameExists when another Class (other than the one with
	// excludeID) of the same school year already uses name.
	CheckNameUniqueness(ctx context.Context, name, schoolYear string, excludeID int64) error
	CreateClass(ctx context.Context, c Class) (Class, error)
	QueryClasses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Class, error)
	GetClass(ctx context.Context, id int64) (Class, error)
	UpdateClass(ctx context.Context, c Class) (Class, error)
	DeleteClass(ctx context.Context, id int64) error
	// Enroll enrolls the students in a class; already enrolled students are skipped.
	Enroll(ctx context.Context, classID int64, studentIDs []int64, at time.Time) error
	Unenroll(ctx context.Context, classID int64, studentIDs ...int64) error
	ClassStudents(ctx context.Context, classID int64) ([]student.Student, error)
	IsEnrolled(ctx context.Context, classID, studentID int64) (bool, error)
}

type Service struct {
	repo       Repository
	studentSvc *student.Service
	teacherSvc *teacher.Service
}

func NewService(repo Repository, studentSvc *student.Service, teacherSvc *teacher.Service) *Service {
	return &Service{repo: repo, studentSvc: studentSvc, teacherSvc: teacherSvc}
}

func (svc *Service) checkUniqueness(ctx context.Context, name, schoolYear string, excludeID int64) error {
	if err := svc.repo.CheckNameUniqueness(ctx, name, schoolYear, excludeID); err != nil {
		if err == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) checkAdviser(ctx context.Context, teacherID null.Int64) error {
	if !teacherID.Valid {
		return nil
	}
	t, err := svc.teacherSvc.GetByID(ctx, teacherID.Int64)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return err
	}
	if !t.IsApproved() {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "teacher is not verified"})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	c := Class{
		Name:       nc.Name,
		GradeLevel: nc.GradeLevel,
		Section:    nc.Section,
		SchoolYear: nc.SchoolYear,
		TeacherID:  null.Int64FromPtr(nc.TeacherID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := svc.checkUniqueness(ctx, c.Name, c.SchoolYear, 0); err != nil {
		return Class{}, err
	}
	if err := svc.checkAdviser(ctx, c.TeacherID); err != nil {
		return Class{}, err
	}
	return svc.repo.CreateClass(ctx, c)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, core.SanitizeOrderings(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) Update(ctx context.Context, c Class, uc UpdateClass) (Class, error) {
	uc.apply(&c)
	if err := svc.checkUniqueness(ctx, c.Name, c.SchoolYear, c.ID); err != nil {
		return Class{}, err
	}
	if uc.TeacherID != nil {
		if err := svc.checkAdviser(ctx, c.TeacherID); err != nil {
			return Class{}, err
		}
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteClass(ctx, id)
}

// Enroll enrolls existing students in class c and returns its students.
func (svc *Service) Enroll(ctx context.Context, c Class, e Enrollment) ([]student.Student, error) {
	for i, id := range e.StudentIDs {
		if _, err := svc.studentSvc.GetByID(ctx, id); err != nil {
			if core.IsNotFound(err) {
				return nil, core.NewValidationError(err, core.FieldError{
					Field: fmt.Sprintf("student_ids[%d]", i),
					Error: err.Error(),
				})
			}
			return nil, err
		}
	}
	if err := svc.repo.Enroll(ctx, c.ID, e.StudentIDs, time.Now().UTC()); err != nil {
		return nil, err
	}
	return svc.repo.ClassStudents(ctx, c.ID)
}

func (svc *Service) Unenroll(ctx context.Context, c Class, studentIDs ...int64) error {
	return svc.repo.Unenroll(ctx, c.ID, studentIDs...)
}

func (svc *Service) Students(ctx context.Context, c Class) ([]student.Student, error) {
	return svc.repo.ClassStudents(ctx, c.ID)
}

func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID int64) (bool, error) {
	return svc.repo.IsEnrolled(ctx, classID, studentID)
}

// CheckManager returns a permission error unless p is an admin or the adviser of c.
// Classes without adviser may be managed by any teacher.
func CheckManager(p account.Principal, c Class) error {
	switch {
	case p.IsAdmin():
		return nil
	case p.IsTeacher() && (!c.TeacherID.Valid || c.TeacherID.Int64 == p.ID):
		return nil
	default:
		return core.NewPermissionError("only admins and the class adviser can manage this class")
	}
}
