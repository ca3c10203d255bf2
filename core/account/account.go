// Package account holds what admin, teacher and student accounts share:
// password hashing and policy, password reset tokens and the authenticated Principal.
package account

import (
	"errors"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/eskwela/core"
)

type Type string

const (
	TypeAdmin   Type = "admin"
	TypeTeacher Type = "teacher"
	TypeStudent Type = "student"
)

var (
	AllTypes = []Type{TypeAdmin, TypeTeacher, TypeStudent}

	// errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account deactivated")
)

func (t Type) Valid() bool {
	switch t {
	case TypeAdmin, TypeTeacher, TypeStudent:
		return true
	default:
		return false
	}
}

// Principal is the authenticated account performing an operation.
type Principal struct {
	ID    int64    `json:"id"`
	Type  Type     `json:"user_type"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (p Principal) IsAdmin() bool   { return p.Type == TypeAdmin }
func (p Principal) IsTeacher() bool { return p.Type == TypeTeacher }
func (p Principal) IsStudent() bool { return p.Type == TypeStudent }

// IsStaff reports whether p is an admin or a teacher.
func (p Principal) IsStaff() bool { return p.IsAdmin() || p.IsTeacher() }

func HashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
}

// CheckPassword returns ErrInvalidCredentials when pwd does not match hash.
func CheckPassword(hash []byte, pwd string) error {
	if len(hash) == 0 {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pwd)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// PasswordResetData is the template data of the password reset email.
type PasswordResetData struct {
	Name   string
	Portal Type
	UID    string
	Token  string
}

// PasswordResetMessage builds the password reset email of the given account.
func PasswordResetMessage(to mail.Address, data PasswordResetData) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: data,
	}
}
