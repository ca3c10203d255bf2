package teacher

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

// Verification statuses; pending -> approved | rejected.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var AllStatuses = []string{StatusPending, StatusApproved, StatusRejected}

type Teacher struct {
	ID                 int64     `json:"id" db:"id"`
	EmployeeID         string    `json:"employee_id" db:"employee_id"`
	FirstName          string    `json:"first_name" db:"first_name"`
	LastName           string    `json:"last_name" db:"last_name"`
	Email              string    `json:"email" db:"email"`
	Contact            string    `json:"contact" db:"contact"`
	Department         string    `json:"department" db:"department"`
	PasswordHash       []byte    `json:"-" db:"password_hash"`
	VerificationStatus string    `json:"verification_status" db:"verification_status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
	LastLogin          null.Time `json:"last_login" db:"last_login"`
}

func (t Teacher) FullName() string {
	return core.CleanString(t.FirstName + " " + t.LastName)
}

func (t Teacher) IsApproved() bool { return t.VerificationStatus == StatusApproved }

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := account.HashPassword(pwd)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t Teacher) CheckPassword(pwd string) error {
	return account.CheckPassword(t.PasswordHash, pwd)
}

func (t Teacher) AccountID() int64 { return t.ID }

func (t Teacher) ResetState() []byte {
	return account.ResetState(t.PasswordHash, t.LastLogin.Time)
}

func (t Teacher) Principal() account.Principal {
	return account.Principal{
		ID:    t.ID,
		Type:  account.TypeTeacher,
		Name:  t.FullName(),
		Email: t.Email,
	}
}

// NewTeacher contains information needed to register a new Teacher.
type NewTeacher struct {
	EmployeeID      string `json:"employee_id" validate:"omitempty,max=30,alphanum_"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Contact         string `json:"contact" validate:"omitempty,max=30"`
	Department      string `json:"department" validate:"omitempty,max=100"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nt.FirstName = core.CleanString(nt.FirstName)
	nt.LastName = core.CleanString(nt.LastName)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Contact = core.CleanString(nt.Contact)
	nt.Department = core.CleanString(nt.Department)
	return validate.Struct(nt)
}

// UpdateTeacher defines what information may be provided to modify a Teacher's profile.
// Only set fields are updated.
type UpdateTeacher struct {
	EmployeeID      *string `json:"employee_id" validate:"omitempty,max=30,alphanum_"`
	FirstName       *string `json:"first_name" validate:"omitempty,notblank"`
	LastName        *string `json:"last_name" validate:"omitempty,notblank"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Contact         *string `json:"contact" validate:"omitempty,max=30"`
	Department      *string `json:"department" validate:"omitempty,max=100"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	// set by Validate for the password policy
	attrs []string
}

func (ut *UpdateTeacher) Validate(orig Teacher, validate *validator.Validate) error {
	for _, s := range []*string{ut.EmployeeID, ut.FirstName, ut.LastName, ut.Contact, ut.Department} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if ut.Email != nil {
		*ut.Email = core.CleanString(*ut.Email, true /* lower */)
	}
	ut.attrs = []string{orig.FirstName, orig.LastName, orig.Email}
	return validate.Struct(ut)
}

func (ut UpdateTeacher) apply(t *Teacher) {
	if ut.EmployeeID != nil {
		t.EmployeeID = *ut.EmployeeID
	}
	if ut.FirstName != nil {
		t.FirstName = *ut.FirstName
	}
	if ut.LastName != nil {
		t.LastName = *ut.LastName
	}
	if ut.Email != nil && *ut.Email != "" {
		t.Email = *ut.Email
	}
	if ut.Contact != nil {
		t.Contact = *ut.Contact
	}
	if ut.Department != nil {
		t.Department = *ut.Department
	}
}

type ResetTeacherPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetTeacherPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search     string `query:"search"`
	Status     string `query:"status"`
	Department string `query:"department"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Department = core.CleanString(qf.Department)
}

// OrderingFields maps the accepted ordering fields to their columns.
var OrderingFields = map[string]string{
	"id":                  "id",
	"employee_id":         "employee_id",
	"first_name":          "first_name",
	"last_name":           "last_name",
	"email":               "email",
	"department":          "department",
	"verification_status": "verification_status",
	"created_at":          "created_at",
}
