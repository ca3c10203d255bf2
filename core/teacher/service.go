package teacher

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/notification"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("teacher")
	ErrEmailExists         = errors.New("a teacher with this email already exists")
	ErrVerificationPending = errors.New("account pending verification")
	ErrRegistrationDenied  = errors.New("account registration rejected")
	ErrAlreadyVerified     = errors.New("teacher has already been verified")
)

type (
	// GetFilter selects a single Teacher; only one field is expected to be set.
	GetFilter struct {
		ID    int64
		Email string
	}

	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another Teacher
		// (other than the one with excludeID) already uses email.
		CheckEmailUniqueness(ctx context.Context, email string, excludeID int64) error
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		// QueryTeachers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names, the email or the employee ID.
		QueryTeachers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Teacher, error)
		GetTeacher(ctx context.Context, filter GetFilter) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		// SetVerificationStatus moves a pending Teacher to status.
		// It returns the unchanged Teacher and ErrAlreadyVerified when the Teacher is no longer pending.
		SetVerificationStatus(ctx context.Context, id int64, status string) (Teacher, error)
		SetLastLogin(ctx context.Context, id int64, t time.Time) error
		DeleteTeacher(ctx context.Context, id int64) error
		CountByStatus(ctx context.Context) (map[string]int, error)
	}

	Service struct {
		repo     Repository
		notifSvc *notification.Service
		mailSvc  core.EmailService
		tokens   *account.TokenGenerator
	}

	verificationData struct {
		Name     string
		Approved bool
	}
)

func NewService(repo Repository, notifSvc *notification.Service, mailSvc core.EmailService, tokens *account.TokenGenerator) *Service {
	return &Service{repo: repo, notifSvc: notifSvc, mailSvc: mailSvc, tokens: tokens}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludeID int64) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludeID); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a validated NewTeacher, pending verification, and notifies the admins.
func (svc *Service) Register(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if err := svc.checkUniqueness(ctx, nt.Email, 0); err != nil {
		return Teacher{}, err
	}

	now := time.Now().UTC()
	t := Teacher{
		EmployeeID:         nt.EmployeeID,
		FirstName:          nt.FirstName,
		LastName:           nt.LastName,
		Email:              nt.Email,
		Contact:            nt.Contact,
		Department:         nt.Department,
		VerificationStatus: StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := t.SetPassword(nt.Password); err != nil {
		return Teacher{}, err
	}
	t, err := svc.repo.CreateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, err
	}

	msg := fmt.Sprintf("%s (%s) registered and is waiting for verification.", t.FullName(), t.Email)
	if err = svc.notifSvc.NotifyAdmins(ctx, "New teacher registration", msg); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter, core.SanitizeOrderings(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{ID: id})
}

// Update applies a validated UpdateTeacher to t.
func (svc *Service) Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error) {
	ut.apply(&t)
	if err := svc.checkUniqueness(ctx, t.Email, t.ID); err != nil {
		return Teacher{}, err
	}
	if ut.Password != "" {
		if err := t.SetPassword(ut.Password); err != nil {
			return Teacher{}, err
		}
	}
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteTeacher(ctx, id)
}

func (svc *Service) Approve(ctx context.Context, id int64) (Teacher, error) {
	return svc.verify(ctx, id, true)
}

func (svc *Service) Reject(ctx context.Context, id int64) (Teacher, error) {
	return svc.verify(ctx, id, false)
}

// verify decides on a pending registration, then notifies the teacher in-app and by email.
func (svc *Service) verify(ctx context.Context, id int64, approve bool) (Teacher, error) {
	status, title := StatusRejected, "Registration rejected"
	if approve {
		status, title = StatusApproved, "Registration approved"
	}

	t, err := svc.repo.SetVerificationStatus(ctx, id, status)
	if err != nil {
		if err == ErrAlreadyVerified {
			return Teacher{}, core.NewConflictError(fmt.Sprintf("%s (status: %s)", err.Error(), t.VerificationStatus))
		}
		return Teacher{}, err
	}

	msg := "Your teacher account registration has been " + status + "."
	if err = svc.notifSvc.Notify(ctx, account.TypeTeacher, t.ID, title, msg); err != nil {
		return Teacher{}, err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: t.FullName(), Address: t.Email}},
		Subject:      title,
		TemplateName: "teacher_verification",
		TemplateData: verificationData{Name: t.FullName(), Approved: approve},
	})
	return t, nil
}

// Authenticate checks the credentials of a teacher and records their login.
// Wrong credentials always fail with account.ErrInvalidCredentials; valid credentials of an
// unverified teacher fail with ErrVerificationPending or ErrRegistrationDenied.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Teacher, error) {
	t, err := svc.repo.GetTeacher(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if core.IsNotFound(err) {
			return Teacher{}, account.ErrInvalidCredentials
		}
		return Teacher{}, err
	}
	if err = t.CheckPassword(pwd); err != nil {
		return Teacher{}, err
	}

	switch t.VerificationStatus {
	case StatusApproved:
	case StatusRejected:
		return Teacher{}, ErrRegistrationDenied
	default:
		return Teacher{}, ErrVerificationPending
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, t.ID, now); err != nil {
		return Teacher{}, err
	}
	t.LastLogin = null.TimeFrom(now)
	return t, nil
}

// RequestPasswordReset emails a password reset link to the approved teacher owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	t, err := svc.repo.GetTeacher(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !t.IsApproved() {
		return ErrNotFound
	}

	token, err := svc.tokens.MakeToken(t)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(account.PasswordResetMessage(
		mail.Address{Name: t.FullName(), Address: t.Email},
		account.PasswordResetData{Name: t.FullName(), Portal: account.TypeTeacher, UID: account.EncodeUID(t.ID), Token: token},
	))
	return nil
}

// ResetPassword sets a new password after checking the reset token.
func (svc *Service) ResetPassword(ctx context.Context, data ResetTeacherPassword) error {
	invalid := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	id, err := account.DecodeUID(data.UID)
	if err != nil {
		return invalid(err)
	}
	t, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid(account.ErrInvalidToken)
		}
		return err
	}
	if err = svc.tokens.VerifyToken(t, data.Token); err != nil {
		return invalid(err)
	}

	if err = t.SetPassword(data.Password); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateTeacher(ctx, t)
	return err
}

// CountByStatus returns the number of teachers per verification status.
func (svc *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := svc.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range AllStatuses {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	return counts, nil
}
