package grade

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/student"
)

// Grade holds the four quarter scores of a student in one subject; unset quarters are null.
type Grade struct {
	ID        int64        `json:"-" db:"id"`
	StudentID int64        `json:"student_id" db:"student_id"`
	Subject   string       `json:"subject" db:"subject"`
	Q1        null.Float64 `json:"q1" db:"q1"`
	Q2        null.Float64 `json:"q2" db:"q2"`
	Q3        null.Float64 `json:"q3" db:"q3"`
	Q4        null.Float64 `json:"q4" db:"q4"`
}

// Quarter returns the score of quarter q (1..4).
func (g Grade) Quarter(q Quarter) null.Float64 {
	switch q {
	case 1:
		return g.Q1
	case 2:
		return g.Q2
	case 3:
		return g.Q3
	case 4:
		return g.Q4
	default:
		return null.Float64{}
	}
}

func (g Grade) subjectKey() string {
	return strings.ToLower(g.Subject)
}

type SubjectGrade struct {
	Grade
	Average float64 `json:"average"`
}

type StudentGrades struct {
	student.Student
	Grades       []SubjectGrade `json:"grades"`
	FinalAverage float64        `json:"final_average"`
}

func newStudentGrades(st student.Student, grades []Grade) StudentGrades {
	sg := StudentGrades{
		Student:      st,
		Grades:       make([]SubjectGrade, 0, len(grades)),
		FinalAverage: FinalAverage(grades),
	}
	for _, g := range grades {
		sg.Grades = append(sg.Grades, SubjectGrade{Grade: g, Average: SubjectAverage(g)})
	}
	return sg
}

// SubjectInput is the submitted grade of one subject.
type SubjectInput struct {
	Subject string   `json:"subject" validate:"required,notblank,max=100"`
	Q1      *float64 `json:"q1" validate:"omitempty,gte=0,lte=100"`
	Q2      *float64 `json:"q2" validate:"omitempty,gte=0,lte=100"`
	Q3      *float64 `json:"q3" validate:"omitempty,gte=0,lte=100"`
	Q4      *float64 `json:"q4" validate:"omitempty,gte=0,lte=100"`
}

// ReplaceGrades is the full set of grades of a student; subjects left out are removed.
type ReplaceGrades struct {
	Grades []SubjectInput `json:"grades" validate:"dive"`
}

func (rg *ReplaceGrades) Validate(validate *validator.Validate) error {
	for i := range rg.Grades {
		rg.Grades[i].Subject = core.CleanString(rg.Grades[i].Subject)
	}
	if err := validate.Struct(rg); err != nil {
		return err
	}

	seen := make(map[string]int, len(rg.Grades))
	for i, in := range rg.Grades {
		key := strings.ToLower(in.Subject)
		if j, ok := seen[key]; ok {
			return core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("grades[%d].subject", i),
				Error: fmt.Sprintf("duplicate subject (see grades[%d])", j),
			})
		}
		seen[key] = i
	}
	return nil
}

func (rg ReplaceGrades) toGrades(studentID int64) []Grade {
	grades := make([]Grade, 0, len(rg.Grades))
	for _, in := range rg.Grades {
		grades = append(grades, Grade{
			StudentID: studentID,
			Subject:   in.Subject,
			Q1:        score(in.Q1),
			Q2:        score(in.Q2),
			Q3:        score(in.Q3),
			Q4:        score(in.Q4),
		})
	}
	return grades
}

func score(f *float64) null.Float64 {
	if f == nil {
		return null.Float64{}
	}
	return null.Float64From(core.Round2(*f))
}

func sameScore(a, b null.Float64) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || math.Abs(a.Float64-b.Float64) < 0.005
}
