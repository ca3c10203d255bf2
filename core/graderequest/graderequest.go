// Package graderequest handles the requests teachers send to edit the grades of a quarter
// that is no longer editable.
package graderequest

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
)

// Statuses; pending -> approved | rejected, approved -> completed.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("grade request")
	ErrPendingExists  = errors.New("a pending request for this student and quarter already exists")
	ErrAlreadyDecided = errors.New("grade request has already been decided")
)

type GradeRequest struct {
	ID          int64     `json:"id" db:"id"`
	TeacherID   int64     `json:"teacher_id" db:"teacher_id"`
	TeacherName string    `json:"teacher_name" db:"teacher_name"`
	StudentID   int64     `json:"student_id" db:"student_id"`
	StudentName string    `json:"student_name" db:"student_name"`
	Quarter     int       `json:"quarter" db:"quarter"`
	Reason      string    `json:"reason" db:"reason"`
	Status      string    `json:"status" db:"status"`
	AdminNote   string    `json:"admin_note" db:"admin_note"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type NewGradeRequest struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Quarter   int    `json:"quarter" validate:"required,gte=1,lte=4"`
	Reason    string `json:"reason" validate:"required,notblank,max=1000"`
}

func (ngr *NewGradeRequest) Validate(validate *validator.Validate) error {
	ngr.Reason = core.CleanString(ngr.Reason)
	return validate.Struct(ngr)
}

// Decision is an admin's answer to a pending GradeRequest.
type Decision struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note" validate:"max=1000"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	d.Note = core.CleanString(d.Note)
	return validate.Struct(d)
}

type QueryFilter struct {
	TeacherID int64  `query:"teacher_id"`
	StudentID int64  `query:"student_id"`
	Quarter   int    `query:"quarter"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// OrderingFields maps the accepted ordering fields to their columns.
var OrderingFields = map[string]string{
	"id":         "gr.id",
	"quarter":    "gr.quarter",
	"status":     "gr.status",
	"created_at": "gr.created_at",
	"updated_at": "gr.updated_at",
}

type Repository interface {
	CreateGradeRequest(ctx context.Context, gr GradeRequest) (GradeRequest, error)
	HasPending(ctx context.Context, teacherID, studentID int64, quarter int) (bool, error)
	QueryGradeRequests(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]GradeRequest, error)
	GetGradeRequest(ctx context.Context, id int64) (GradeRequest, error)
	// DecideGradeRequest moves a pending request to status. It returns the unchanged request
	// and ErrAlreadyDecided when the request is no longer pending.
	DecideGradeRequest(ctx context.Context, id int64, status, note string, at time.Time) (GradeRequest, error)
	CountPending(ctx context.Context) (int, error)
}

type Service struct {
	repo       Repository
	studentSvc *student.Service
	teacherSvc *teacher.Service
	notifSvc   *notification.Service
	mailSvc    core.EmailService
	logger     core.Logger
}

type decisionData struct {
	Name        string
	Quarter     int
	StudentName string
	Status      string
	Note        string
}

func NewService(
	repo Repository,
	studentSvc *student.Service,
	teacherSvc *teacher.Service,
	notifSvc *notification.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		studentSvc: studentSvc,
		teacherSvc: teacherSvc,
		notifSvc:   notifSvc,
		mailSvc:    mailSvc,
		logger:     logger,
	}
}

// Create files a validated request of the teacher p and notifies the admins.
// The request stands even when the admins could not be notified.
func (svc *Service) Create(ctx context.Context, p account.Principal, ngr NewGradeRequest) (GradeRequest, error) {
	st, err := svc.studentSvc.GetByID(ctx, ngr.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return GradeRequest{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return GradeRequest{}, err
	}

	pending, err := svc.repo.HasPending(ctx, p.ID, st.ID, ngr.Quarter)
	if err != nil {
		return GradeRequest{}, err
	}
	if pending {
		return GradeRequest{}, core.NewConflictError(ErrPendingExists.Error())
	}

	now := time.Now().UTC()
	gr, err := svc.repo.CreateGradeRequest(ctx, GradeRequest{
		TeacherID: p.ID,
		StudentID: st.ID,
		Quarter:   ngr.Quarter,
		Reason:    ngr.Reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return GradeRequest{}, err
	}
	gr.TeacherName = p.Name
	gr.StudentName = st.FullName()

	msg := fmt.Sprintf("%s requests to edit quarter %d grades of %s: %s", p.Name, gr.Quarter, gr.StudentName, gr.Reason)
	if err = svc.notifSvc.NotifyAdmins(ctx, "Grade edit request", msg); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying admins of grade request %d: %v", gr.ID, err), err, p)
	}
	return gr, nil
}

// Query returns every matching request to admins, and their own requests to teachers.
func (svc *Service) Query(ctx context.Context, p account.Principal, filter QueryFilter, ordering []core.DBOrdering) ([]GradeRequest, error) {
	if !p.IsAdmin() {
		filter.TeacherID = p.ID
	}
	return svc.repo.QueryGradeRequests(ctx, filter, core.SanitizeOrderings(ordering, OrderingFields))
}

// Get returns a request visible to p.
func (svc *Service) Get(ctx context.Context, p account.Principal, id int64) (GradeRequest, error) {
	gr, err := svc.repo.GetGradeRequest(ctx, id)
	if err != nil {
		return GradeRequest{}, err
	}
	if !p.IsAdmin() && gr.TeacherID != p.ID {
		return GradeRequest{}, ErrNotFound
	}
	return gr, nil
}

// Decide approves or rejects a pending request, then notifies the teacher in-app and by email.
// Notification failures are logged since the decision is already saved.
func (svc *Service) Decide(ctx context.Context, id int64, d Decision) (GradeRequest, error) {
	gr, err := svc.repo.DecideGradeRequest(ctx, id, d.Status, d.Note, time.Now().UTC())
	if err != nil {
		if err == ErrAlreadyDecided {
			return GradeRequest{}, core.NewConflictError(fmt.Sprintf("%s (status: %s)", err.Error(), gr.Status))
		}
		return GradeRequest{}, err
	}

	title := "Grade edit request " + gr.Status
	msg := fmt.Sprintf("Your request to edit quarter %d grades of %s has been %s.", gr.Quarter, gr.StudentName, gr.Status)
	if err = svc.notifSvc.Notify(ctx, account.TypeTeacher, gr.TeacherID, title, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying teacher of grade request %d: %v", gr.ID, err), err)
	}

	t, err := svc.teacherSvc.GetByID(ctx, gr.TeacherID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("emailing decision of grade request %d: %v", gr.ID, err), err)
		return gr, nil
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: t.FullName(), Address: t.Email}},
		Subject:      title,
		TemplateName: "grade_request_decision",
		TemplateData: decisionData{
			Name:        t.FullName(),
			Quarter:     gr.Quarter,
			StudentName: gr.StudentName,
			Status:      gr.Status,
			Note:        gr.AdminNote,
		},
	})
	return gr, nil
}

func (svc *Service) CountPending(ctx context.Context) (int, error) {
	return svc.repo.CountPending(ctx)
}

// ByStatus returns the requests of a student having the given status,
// filed by the given teacher or by anyone when teacherID is 0.
func (svc *Service) ByStatus(ctx context.Context, studentID, teacherID int64, status string) ([]GradeRequest, error) {
	filter := QueryFilter{StudentID: studentID, TeacherID: teacherID, Status: status}
	return svc.repo.QueryGradeRequests(ctx, filter, nil)
}
