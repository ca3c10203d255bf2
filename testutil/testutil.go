// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
	"github.com/trezcool/eskwela/storage/database"
)

// DatabaseURLEnv names the env var holding the URL of a disposable PostgreSQL database.
const DatabaseURLEnv = "ESKWELA_TEST_DATABASE_URL"

// NewValidator returns a validator with every custom validation and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	teacher.InitValidators(validate)
	class.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens and migrates the test database, and empties it once the test is over.
// Tests are skipped when no test database is configured; `make test-db` runs them against a
// throwaway PostgreSQL container.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", DatabaseURLEnv)
	}

	db, err := database.OpenURL(context.Background(), dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)

	t.Cleanup(func() {
		ResetDB(t, db)
		_ = db.Close()
	})
	return db
}

// ResetDB deletes every row of the app tables.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()

	q := `TRUNCATE attendance_records, class_enrollments, classes, notifications, grade_requests, grades,
		teachers, students, users RESTART IDENTITY CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{user.RoleAdmin}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	lrn, firstName, lastName string,
	gradeLevel int,
	section, pwd string,
) student.Student {
	t.Helper()

	now := time.Now().UTC()
	st := student.Student{
		LRN:        lrn,
		FirstName:  firstName,
		LastName:   lastName,
		Sex:        "female",
		GradeLevel: gradeLevel,
		Section:    section,
		Email:      null.String{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd != "" {
		if err := st.SetPassword(pwd); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateTeacher(
	t *testing.T,
	repo teacher.Repository,
	firstName, lastName, email, pwd, status string,
) teacher.Teacher {
	t.Helper()

	now := time.Now().UTC()
	tch := teacher.Teacher{
		FirstName:          firstName,
		LastName:           lastName,
		Email:              email,
		Department:         "Science",
		VerificationStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if pwd != "" {
		if err := tch.SetPassword(pwd); err != nil {
			t.Fatalf("CreateTeacher() failed: %v", err)
		}
	}
	tch, err := repo.CreateTeacher(context.Background(), tch)
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tch
}
