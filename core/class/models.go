package class

import (
	"regexp"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
)

var (
	schoolYearTag   = "schoolyear"
	schoolYearText  = "school year must be of the form YYYY-YYYY"
	schoolYearRegex = regexp.MustCompile(`^\d{4}-\d{4}$`)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(schoolYearTag, func(fl validator.FieldLevel) bool {
		return schoolYearRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, schoolYearTag, schoolYearText)
}

type Class struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	GradeLevel   int        `json:"grade_level" db:"grade_level"`
	Section      string     `json:"section" db:"section"`
	SchoolYear   string     `json:"school_year" db:"school_year"`
	TeacherID    null.Int64 `json:"teacher_id" db:"teacher_id"` // adviser
	StudentCount int        `json:"student_count" db:"student_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

type NewClass struct {
	Name       string `json:"name" validate:"required,max=100"`
	GradeLevel int    `json:"grade_level" validate:"required,gte=1,lte=12"`
	Section    string `json:"section" validate:"required,max=50"`
	SchoolYear string `json:"school_year" validate:"required,schoolyear"`
	TeacherID  *int64 `json:"teacher_id" validate:"omitempty,gt=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	nc.SchoolYear = core.CleanString(nc.SchoolYear)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify a Class. Only set fields are updated;
// a teacher_id of 0 removes the adviser.
type UpdateClass struct {
	Name       *string `json:"name" validate:"omitempty,notblank,max=100"`
	GradeLevel *int    `json:"grade_level" validate:"omitempty,gte=1,lte=12"`
	Section    *string `json:"section" validate:"omitempty,notblank,max=50"`
	SchoolYear *string `json:"school_year" validate:"omitempty,schoolyear"`
	TeacherID  *int64  `json:"teacher_id" validate:"omitempty,gte=0"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uc.Name, uc.Section, uc.SchoolYear} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uc)
}

func (uc UpdateClass) apply(c *Class) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.GradeLevel != nil {
		c.GradeLevel = *uc.GradeLevel
	}
	if uc.Section != nil {
		c.Section = *uc.Section
	}
	if uc.SchoolYear != nil {
		c.SchoolYear = *uc.SchoolYear
	}
	if uc.TeacherID != nil {
		c.TeacherID = null.NewInt64(*uc.TeacherID, *uc.TeacherID > 0)
	}
}

type Enrollment struct {
	StudentIDs []int64 `json:"student_ids" validate:"required,min=1,dive,gt=0"`
}

func (e *Enrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(e)
}

type QueryFilter struct {
	Search     string `query:"search"`
	GradeLevel int    `query:"grade_level"`
	Section    string `query:"section"`
	SchoolYear string `query:"school_year"`
	TeacherID  int64  `query:"teacher_id"`
	StudentID  int64  `query:"student_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Section = core.CleanString(qf.Section)
	qf.SchoolYear = core.CleanString(qf.SchoolYear)
}

// OrderingFields maps the accepted ordering fields to their columns.
var OrderingFields = map[string]string{
	"id":          "c.id",
	"name":        "c.name",
	"grade_level": "c.grade_level",
	"section":     "c.section",
	"school_year": "c.school_year",
	"created_at":  "c.created_at",
}
