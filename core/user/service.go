package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	// GetFilter selects a single User; only one field is expected to be set.
	GetFilter struct {
		ID              int64
		UsernameOrEmail string
	}

	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another User
		// (other than the one with excludeID) already uses the given username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id int64, t time.Time) error
		DeleteUsers(ctx context.Context, ids ...int64) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  *account.TokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, tokens *account.TokenGenerator) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, tokens: tokens}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludeID int64) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create creates a validated NewUser.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, 0); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.SanitizeOrderings(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Update applies a validated UpdateUser to usr.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := svc.checkUniqueness(ctx, uu.Username, uu.Email, usr.ID); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

// Authenticate checks the credentials of an admin and records their login.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, account.ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, account.ErrAccountInactive
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

// RequestPasswordReset emails a password reset link to the active admin owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive || usr.Email == "" {
		return ErrNotFound
	}

	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(account.PasswordResetMessage(
		mail.Address{Name: usr.Name, Address: usr.Email},
		account.PasswordResetData{Name: usr.Name, Portal: account.TypeAdmin, UID: account.EncodeUID(usr.ID), Token: token},
	))
	return nil
}

// ResetPassword sets a new password after checking the reset token.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := account.DecodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(account.ErrInvalidToken, core.FieldError{Field: "token", Error: account.ErrInvalidToken.Error()})
		}
		return err
	}
	if err = svc.tokens.VerifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	return svc.setPassword(ctx, usr, data.Password)
}

// SetPassword sets the password of the User identified by username or email.
func (svc *Service) SetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

// AddUser updates or creates an active User with the given credentials.
func (svc *Service) AddUser(ctx context.Context, name, uname, email, pwd string, isOwner bool) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if uname == "" && email == "" {
		return User{}, core.NewValidationError(errors.New(usernameOrEmailText))
	}
	if err := checkUsername(uname); err != nil {
		return User{}, err
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: lookup})
	exists := err == nil
	if err != nil && !core.IsNotFound(err) {
		return User{}, err
	}

	now := time.Now().UTC()
	if !exists {
		usr = User{Username: uname, Email: email, Roles: []string{RoleAdmin}, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = usr.Username
	}
	if isOwner {
		usr.Roles = AllRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, err
	}

	if exists {
		return svc.repo.UpdateUser(ctx, usr)
	}
	if err = svc.checkUniqueness(ctx, usr.Username, usr.Email, 0); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// checkUsername applies the rules of the username validation tags of NewUser.
func checkUsername(uname string) error {
	if uname == "" {
		return nil
	}
	var msg string
	switch {
	case len([]rune(uname)) < usernameMinLen:
		msg = usernameMinLenText
	case !core.ValidAlphaNumUnder(uname):
		msg = core.AlphaNumUnderText
	default:
		return nil
	}
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "username", Error: msg})
}
