package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

const (
	SexMale   = "male"
	SexFemale = "female"
)

type Student struct {
	ID           int64       `json:"id" db:"id"`
	LRN          string      `json:"lrn" db:"lrn"`
	FirstName    string      `json:"first_name" db:"first_name"`
	MiddleName   string      `json:"middle_name" db:"middle_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	Age          int         `json:"age" db:"age"`
	Sex          string      `json:"sex" db:"sex"`
	GradeLevel   int         `json:"grade_level" db:"grade_level"`
	Section      string      `json:"section" db:"section"`
	Contact      string      `json:"contact" db:"contact"`
	Email        null.String `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	Average      float64     `json:"average" db:"average"` // final average, persisted on every grade save
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

func (s Student) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.FirstName, s.MiddleName, s.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := account.HashPassword(pwd)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s Student) CheckPassword(pwd string) error {
	return account.CheckPassword(s.PasswordHash, pwd)
}

func (s Student) Principal() account.Principal {
	return account.Principal{
		ID:    s.ID,
		Type:  account.TypeStudent,
		Name:  s.FullName(),
		Email: s.Email.String,
	}
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	LRN             string `json:"lrn" validate:"required,numeric,len=12"`
	FirstName       string `json:"first_name" validate:"required"`
	MiddleName      string `json:"middle_name"`
	LastName        string `json:"last_name" validate:"required"`
	Age             int    `json:"age" validate:"omitempty,gte=3,lte=100"`
	Sex             string `json:"sex" validate:"required,oneof=male female"`
	GradeLevel      int    `json:"grade_level" validate:"required,gte=1,lte=12"`
	Section         string `json:"section" validate:"required"`
	Contact         string `json:"contact" validate:"omitempty,max=30"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.LRN = core.CleanString(ns.LRN)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.MiddleName = core.CleanString(ns.MiddleName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Sex = core.CleanString(ns.Sex, true /* lower */)
	ns.Section = core.CleanString(ns.Section)
	ns.Contact = core.CleanString(ns.Contact)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Only set fields are updated.
type UpdateStudent struct {
	LRN             *string `json:"lrn" validate:"omitempty,numeric,len=12"`
	FirstName       *string `json:"first_name" validate:"omitempty,notblank"`
	MiddleName      *string `json:"middle_name"`
	LastName        *string `json:"last_name" validate:"omitempty,notblank"`
	Age             *int    `json:"age" validate:"omitempty,gte=3,lte=100"`
	Sex             *string `json:"sex" validate:"omitempty,oneof=male female"`
	GradeLevel      *int    `json:"grade_level" validate:"omitempty,gte=1,lte=12"`
	Section         *string `json:"section" validate:"omitempty,notblank"`
	Contact         *string `json:"contact" validate:"omitempty,max=30"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        string  `json:"password" validate:"omitempty,min=8"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(us.LRN, false)
	clean(us.FirstName, false)
	clean(us.MiddleName, false)
	clean(us.LastName, false)
	clean(us.Sex, true)
	clean(us.Section, false)
	clean(us.Contact, false)
	clean(us.Email, true)
	return validate.Struct(us)
}

// apply copies the set fields of us onto st.
func (us UpdateStudent) apply(st *Student) {
	if us.LRN != nil {
		st.LRN = *us.LRN
	}
	if us.FirstName != nil {
		st.FirstName = *us.FirstName
	}
	if us.MiddleName != nil {
		st.MiddleName = *us.MiddleName
	}
	if us.LastName != nil {
		st.LastName = *us.LastName
	}
	if us.Age != nil {
		st.Age = *us.Age
	}
	if us.Sex != nil {
		st.Sex = *us.Sex
	}
	if us.GradeLevel != nil {
		st.GradeLevel = *us.GradeLevel
	}
	if us.Section != nil {
		st.Section = *us.Section
	}
	if us.Contact != nil {
		st.Contact = *us.Contact
	}
	if us.Email != nil {
		st.Email = null.NewString(*us.Email, *us.Email != "")
	}
}

type QueryFilter struct {
	Search     string `query:"search"`
	GradeLevel int    `query:"grade_level"`
	Section    string `query:"section"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Section = core.CleanString(qf.Section)
}

// OrderingFields maps the accepted ordering fields to their columns.
var OrderingFields = map[string]string{
	"id":          "id",
	"lrn":         "lrn",
	"first_name":  "first_name",
	"last_name":   "last_name",
	"grade_level": "grade_level",
	"section":     "section",
	"average":     "average",
	"created_at":  "created_at",
}
