package echoapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/teacher"
	emailsvc "github.com/trezcool/eskwela/services/email"
	"github.com/trezcool/eskwela/testutil"
)

const strongPwd = "Xk7#qWz!pL9v"

func Test_teacherApi_registerAndVerify(t *testing.T) {
	app := newTestApp(t)
	emailsvc.ResetSentMessages()

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	adminToken := app.token(t, admin.Principal())

	nt := teacher.NewTeacher{
		FirstName: "Maria", LastName: "Santos", Email: "Maria@Test.ph", Department: "Science",
		Password: strongPwd, PasswordConfirm: strongPwd,
	}
	weak := nt
	weak.Password, weak.PasswordConfirm = "password", "password"

	app.run(t, []httpTest{
		{
			name: "weak password", method: http.MethodPost, path: "/api/teachers/register", body: weak,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "mismatched passwords", method: http.MethodPost, path: "/api/teachers/register",
			body: teacher.NewTeacher{FirstName: "A", LastName: "B", Email: "ab@test.ph", Password: strongPwd, PasswordConfirm: "x"},
			wantCode: http.StatusBadRequest,
		},
	})

	rec := app.do(t, http.MethodPost, "/api/teachers/register", "", nt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tch teacher.Teacher
	decode(t, rec, &tch)
	assert.Equal(t, teacher.StatusPending, tch.VerificationStatus)
	assert.Equal(t, "maria@test.ph", tch.Email)

	t.Run("duplicate email", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/teachers/register", "", nt)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("admins are notified", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/notifications/unread-count", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"count": 1}`, rec.Body.String())
	})

	t.Run("pending teachers cannot log in", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/teachers/login", "", LoginRequest{Username: nt.Email, Password: strongPwd})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	approvePath := fmt.Sprintf("/api/teachers/%d/approve", tch.ID)
	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPatch, path: approvePath, wantCode: http.StatusUnauthorized},
		{
			name: "teachers cannot approve", method: http.MethodPatch, path: approvePath,
			token: app.token(t, tch.Principal()), wantCode: http.StatusForbidden,
		},
		{name: "unknown teacher", method: http.MethodPatch, path: "/api/teachers/999/approve", token: adminToken, wantCode: http.StatusNotFound},
		{name: "approve", method: http.MethodPatch, path: approvePath, token: adminToken},
		{
			name: "already approved", method: http.MethodPatch, path: approvePath, token: adminToken, wantCode: http.StatusConflict,
			wantData: httpError{Error: "teacher has already been verified (status: approved)"},
		},
		{
			name: "cannot reject once approved", method: http.MethodPatch, path: fmt.Sprintf("/api/teachers/%d/reject", tch.ID),
			token: adminToken, wantCode: http.StatusConflict,
		},
	})

	t.Run("teacher is notified", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/notifications", app.token(t, tch.Principal()), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		require.Len(t, notifs, 1)
		assert.Equal(t, "Registration approved", notifs[0].Title)

		var sent bool
		for _, msg := range emailsvc.GetSentMessages() {
			if msg.To[0].Address == "maria@test.ph" && msg.Subject == "Registration approved" {
				sent = true
			}
		}
		assert.True(t, sent, "verification email not sent")
	})

	t.Run("approved teachers can log in", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/teachers/login", "", LoginRequest{Username: nt.Email, Password: strongPwd})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_teacherApi_profile(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	maria := testutil.CreateTeacher(t, app.teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)
	pedro := testutil.CreateTeacher(t, app.teacherRepo, "Pedro", "Penduko", "pedro@test.ph", "", teacher.StatusPending)
	adminToken := app.token(t, admin.Principal())
	mariaToken := app.token(t, maria.Principal())

	app.run(t, []httpTest{
		{name: "admins list", path: "/api/teachers?status=pending", token: adminToken, wantData: []teacher.Teacher{pedro}},
		{name: "teachers cannot list", path: "/api/teachers", token: mariaToken, wantCode: http.StatusForbidden},
		{name: "self", path: fmt.Sprintf("/api/teachers/%d", maria.ID), token: mariaToken, wantData: maria},
		{name: "someone else", path: fmt.Sprintf("/api/teachers/%d", pedro.ID), token: mariaToken, wantCode: http.StatusForbidden},
		{
			name: "update self", method: http.MethodPut, path: fmt.Sprintf("/api/teachers/%d", maria.ID), token: mariaToken,
			body: map[string]interface{}{"department": "Mathematics"},
		},
		{
			name: "teachers cannot delete", method: http.MethodDelete, path: fmt.Sprintf("/api/teachers/%d", maria.ID),
			token: mariaToken, wantCode: http.StatusForbidden,
		},
		{name: "admins delete", method: http.MethodDelete, path: fmt.Sprintf("/api/teachers/%d", pedro.ID), token: adminToken, wantCode: http.StatusNoContent},
	})

	rec := app.do(t, http.MethodGet, fmt.Sprintf("/api/teachers/%d", maria.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got teacher.Teacher
	decode(t, rec, &got)
	assert.Equal(t, "Mathematics", got.Department)
}
