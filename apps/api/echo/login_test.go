package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/testutil"
)

func Test_authApi_teacherLogin(t *testing.T) {
	app := newTestApp(t)

	pwd := "Str0ng!Passw"
	testutil.CreateTeacher(t, app.teacherRepo, "Pending", "Guy", "pending@test.ph", pwd, teacher.StatusPending)
	testutil.CreateTeacher(t, app.teacherRepo, "Rejected", "Guy", "rejected@test.ph", pwd, teacher.StatusRejected)
	approved := testutil.CreateTeacher(t, app.teacherRepo, "Approved", "Guy", "approved@test.ph", pwd, teacher.StatusApproved)

	login := func(email, pwd string) LoginRequest { return LoginRequest{Username: email, Password: pwd} }
	invalidCreds := httpError{Error: account.ErrInvalidCredentials.Error()}

	tests := []httpTest{
		{name: "unknown email", body: login("nobody@test.ph", pwd), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "pending, wrong password", body: login("pending@test.ph", "wrong"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "rejected, wrong password", body: login("rejected@test.ph", "wrong"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "approved, wrong password", body: login("approved@test.ph", "wrong"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{
			name: "pending", body: login("pending@test.ph", pwd), wantCode: http.StatusForbidden,
			wantData: httpError{Error: teacher.ErrVerificationPending.Error()},
		},
		{
			name: "rejected", body: login("REJECTED@test.ph", pwd), wantCode: http.StatusForbidden,
			wantData: httpError{Error: teacher.ErrRegistrationDenied.Error()},
		},
		{
			name: "missing fields", body: LoginRequest{}, wantCode: http.StatusBadRequest,
			wantData: httpError{Error: invalidDataMsg, Details: map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}},
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/teachers/login"
	}
	app.run(t, tests)

	t.Run("approved", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/teachers/login", "", login("approved@test.ph", pwd))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, account.TypeTeacher, resp.Type)
		assert.Equal(t, approved.FullName(), resp.Name)

		tch, err := app.teacherRepo.GetTeacher(context.Background(), teacher.GetFilter{ID: approved.ID})
		require.NoError(t, err)
		assert.True(t, tch.LastLogin.Valid)
	})
}

func Test_authApi_studentAndAdminLogin(t *testing.T) {
	app := newTestApp(t)

	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "student-pwd")
	testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "admin-pwd", nil, true)
	testutil.CreateUser(t, app.userRepo, "Gone", "gone", "gone@test.ph", "gone-pwd", nil, false)

	tests := []httpTest{
		{name: "student by LRN", path: "/api/students/login", body: LoginRequest{Username: st.LRN, Password: "student-pwd"}},
		{
			name: "student wrong password", path: "/api/students/login", body: LoginRequest{Username: st.LRN, Password: "nope"},
			wantCode: http.StatusUnauthorized,
		},
		{name: "admin by username", path: "/api/admins/login", body: LoginRequest{Username: "ADMIN", Password: "admin-pwd"}},
		{name: "admin by email", path: "/api/admins/login", body: LoginRequest{Username: "admin@test.ph", Password: "admin-pwd"}},
		{
			name: "inactive admin", path: "/api/admins/login", body: LoginRequest{Username: "gone", Password: "gone-pwd"},
			wantCode: http.StatusForbidden, wantData: httpError{Error: account.ErrAccountInactive.Error()},
		},
		{
			name: "student credentials on the admin portal", path: "/api/admins/login",
			body: LoginRequest{Username: st.LRN, Password: "student-pwd"}, wantCode: http.StatusUnauthorized,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
	}
	app.run(t, tests)
}

func Test_authApi_refreshToken(t *testing.T) {
	app := newTestApp(t)

	usr := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	naughty := testutil.CreateUser(t, app.userRepo, "N Dog", "ndog", "ndog@test.ph", "", nil, false)
	pending := testutil.CreateTeacher(t, app.teacherRepo, "Pending", "Guy", "pending@test.ph", "", teacher.StatusPending)

	unrefreshable, err := app.srv.auth.GenerateToken(usr.Principal(), time.Now().Add(-2*testConf.Server.JWTRefreshExpirationDelta).Unix())
	require.NoError(t, err)
	deleted, err := app.srv.auth.GenerateToken(account.Principal{ID: 999, Type: account.TypeStudent, Name: "Ghost"})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "invalid token", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{
			name: "refresh period expired", token: unrefreshable, wantCode: http.StatusForbidden,
			wantData: httpError{Error: "refresh has expired"},
		},
		{
			name: "inactive admin", token: app.token(t, naughty.Principal()), wantCode: http.StatusForbidden,
			wantData: httpError{Error: account.ErrAccountInactive.Error()},
		},
		{name: "unapproved teacher", token: app.token(t, pending.Principal()), wantCode: http.StatusForbidden},
		{name: "deleted account", token: deleted, wantCode: http.StatusUnauthorized},
		{name: "refreshed", token: app.token(t, usr.Principal())},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/auth/token-refresh"
	}
	app.run(t, tests)
}

func Test_authApi_me(t *testing.T) {
	app := newTestApp(t)

	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")

	app.run(t, []httpTest{
		{name: "auth required", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{
			name: "student", path: "/api/auth/me", token: app.token(t, st.Principal()),
			wantData: map[string]interface{}{"id": st.ID, "user_type": "student", "name": "Juan Cruz"},
		},
	})
}

func Test_Claims_Principal(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		want    account.Principal
		wantErr bool
	}{
		{name: "bad subject", claims: Claims{UserType: account.TypeAdmin}, wantErr: true},
		{name: "bad user type", claims: claimsWith("12", "janitor"), wantErr: true},
		{
			name:   "teacher",
			claims: claimsWith("12", account.TypeTeacher),
			want:   account.Principal{ID: 12, Type: account.TypeTeacher},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.claims.Principal()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func claimsWith(sub string, typ account.Type) Claims {
	c := Claims{UserType: typ}
	c.Subject = sub
	return c
}
