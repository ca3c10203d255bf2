package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
	inmemdb "github.com/trezcool/eskwela/storage/database/inmem"
	"github.com/trezcool/eskwela/testutil"
)

type testCLI struct {
	*commandLine
	usrRepo     user.Repository
	studentRepo student.Repository
	gradeRepo   grade.Repository
}

func setup(t *testing.T) testCLI {
	t.Helper()

	db := inmemdb.Open()
	tc := testCLI{
		usrRepo:     inmemdb.NewUserRepository(db),
		studentRepo: inmemdb.NewStudentRepository(db),
		gradeRepo:   inmemdb.NewGradeRepository(db),
	}

	cal, err := grade.NewCalendar(grade.DefaultStartMonths)
	require.NoError(t, err)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db))
	stdSvc := student.NewService(tc.studentRepo)
	tchSvc := teacher.NewService(inmemdb.NewTeacherRepository(db), notifSvc, nil, nil)
	reqSvc := graderequest.NewService(inmemdb.NewGradeRequestRepository(db), stdSvc, tchSvc, notifSvc, nil, nil)

	tc.commandLine = &commandLine{
		usrSvc:   user.NewService(tc.usrRepo, nil, nil),
		gradeSvc: grade.NewService(tc.gradeRepo, stdSvc, reqSvc, cal),
	}
	return tc
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string   // prompted password
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli testCLI) error {
	t.Helper()

	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(tt.pwd), nil
	}
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "attendance", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, cli)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, cli.usrRepo, "Old", "old_admin", "old@test.ph", "0ld-P4ss", nil, false)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "owner"}, wantErr: errHelp},
		{name: "create owner", args: []string{"adduser", "-username", "Owner", "-email", "owner@test.ph", "-owner"}, pwd: "0wn3r-P4ss"},
		{name: "update existing", args: []string{"adduser", "-username", "old_admin", "-name", "Renewed"}, pwd: "N3w-P4ss"},
		{
			name: "username too short", args: []string{"adduser", "-username", "bob"}, pwd: "B0b-P4ss",
			wantErrStr: "username must be at least 4 characters in length",
		},
		{
			name: "username with dashes", args: []string{"adduser", "-username", "new-admin"}, pwd: "N3w-P4ss",
			wantErrStr: "only alphanumeric characters and underscores are allowed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, cli)
		})
	}

	owner, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "owner"})
	require.NoError(t, err)
	assert.Equal(t, "owner", owner.Name)
	assert.Equal(t, user.AllRoles, owner.Roles)
	assert.True(t, owner.IsActive)
	assert.NoError(t, owner.CheckPassword("0wn3r-P4ss"))

	_, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "new-admin"})
	assert.True(t, core.IsNotFound(err))

	updated, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Renewed", updated.Name)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword("N3w-P4ss"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe", "awe@test.ph", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(t, cli); err == nil {
				refreshed, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(tt.pwd))
			}
		})
	}
}

func Test_commandLine_recomputeAverages(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	st := testutil.CreateStudent(t, cli.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	grades := []grade.Grade{{
		StudentID: st.ID,
		Subject:   "Math",
		Q1:        null.Float64From(80),
		Q2:        null.Float64From(80),
		Q3:        null.Float64From(80),
		Q4:        null.Float64From(80),
	}}
	require.NoError(t, cli.gradeRepo.ReplaceGrades(ctx, st.ID, grades, 0 /* stale */, nil))

	tt := cliTest{name: "recompute", args: []string{"recompute-averages"}}
	require.NoError(t, tt.run(t, cli))

	refreshed, err := cli.studentRepo.GetStudent(ctx, student.GetFilter{ID: st.ID})
	require.NoError(t, err)
	assert.InDelta(t, 80, refreshed.Average, 0.001)

	changed, err := cli.gradeSvc.RecomputeAverages(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
