package teacher

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eskwela/core/account"
)

func InitValidators(validate *validator.Validate) {
	validate.RegisterStructValidation(teacherStructValidation, NewTeacher{}, UpdateTeacher{}, ResetTeacherPassword{})
}

// teacherStructValidation applies the password policy to the passwords being set.
func teacherStructValidation(sl validator.StructLevel) {
	switch t := sl.Current().Interface().(type) {
	case NewTeacher:
		account.ReportPasswordErrors(sl, t.Password, t.FirstName, t.LastName, t.Email)
	case UpdateTeacher:
		if t.Password != "" {
			account.ReportPasswordErrors(sl, t.Password, t.attrs...)
		}
	case ResetTeacherPassword:
		account.ReportPasswordErrors(sl, t.Password)
	}
}
