package echoapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/testutil"
)

func Test_gradeRequestApi(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	maria := testutil.CreateTeacher(t, app.teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)
	pedro := testutil.CreateTeacher(t, app.teacherRepo, "Pedro", "Penduko", "pedro@test.ph", "", teacher.StatusApproved)
	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	adminToken := app.token(t, admin.Principal())
	mariaToken := app.token(t, maria.Principal())
	pedroToken := app.token(t, pedro.Principal())

	create := func(t *testing.T, token string, ngr graderequest.NewGradeRequest) graderequest.GradeRequest {
		rec := app.do(t, http.MethodPost, "/api/grade-requests", token, ngr)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var gr graderequest.GradeRequest
		decode(t, rec, &gr)
		return gr
	}
	q1 := create(t, mariaToken, graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 1, Reason: "typo"})
	q2 := create(t, pedroToken, graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 2, Reason: "late project"})

	app.run(t, []httpTest{
		{
			name: "admins cannot file requests", method: http.MethodPost, path: "/api/grade-requests", token: adminToken,
			body: graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 3, Reason: "x"}, wantCode: http.StatusForbidden,
		},
		{
			name: "students cannot file requests", method: http.MethodPost, path: "/api/grade-requests",
			token: app.token(t, st.Principal()), body: graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 3, Reason: "x"},
			wantCode: http.StatusForbidden,
		},
		{
			name: "one pending request per quarter", method: http.MethodPost, path: "/api/grade-requests", token: mariaToken,
			body: graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 1, Reason: "again"}, wantCode: http.StatusConflict,
			wantData: httpError{Error: graderequest.ErrPendingExists.Error()},
		},
		{
			name: "invalid quarter", method: http.MethodPost, path: "/api/grade-requests", token: mariaToken,
			body: graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 5, Reason: "x"}, wantCode: http.StatusBadRequest,
		},
		{
			name: "reason required", method: http.MethodPost, path: "/api/grade-requests", token: mariaToken,
			body: graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 3, Reason: "   "}, wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/grade-requests", token: mariaToken,
			body: graderequest.NewGradeRequest{StudentID: 999, Quarter: 3, Reason: "x"}, wantCode: http.StatusBadRequest,
			wantData: httpError{Error: "student not found", Details: map[string]string{"student_id": "student not found"}},
		},
		{name: "teachers see their own", path: "/api/grade-requests", token: mariaToken, wantData: []graderequest.GradeRequest{q1}},
		{name: "admins see all", path: "/api/grade-requests?ordering=quarter", token: adminToken, wantData: []graderequest.GradeRequest{q1, q2}},
		{name: "status filter", path: "/api/grade-requests?status=approved", token: adminToken, wantData: []graderequest.GradeRequest{}},
		{name: "other teacher's request", path: fmt.Sprintf("/api/grade-requests/%d", q2.ID), token: mariaToken, wantCode: http.StatusNotFound},
		{
			name: "teachers cannot decide", method: http.MethodPatch, path: fmt.Sprintf("/api/grade-requests/%d/decide", q1.ID),
			token: mariaToken, body: graderequest.Decision{Status: graderequest.StatusApproved}, wantCode: http.StatusForbidden,
		},
		{
			name: "invalid decision", method: http.MethodPatch, path: fmt.Sprintf("/api/grade-requests/%d/decide", q1.ID),
			token: adminToken, body: graderequest.Decision{Status: graderequest.StatusCompleted}, wantCode: http.StatusBadRequest,
		},
	})

	rec := app.do(t, http.MethodPatch, fmt.Sprintf("/api/grade-requests/%d/decide", q2.ID), adminToken, graderequest.Decision{
		Status: graderequest.StatusRejected, Note: "Deadline was last week",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decided graderequest.GradeRequest
	decode(t, rec, &decided)
	assert.Equal(t, graderequest.StatusRejected, decided.Status)
	assert.Equal(t, "Deadline was last week", decided.AdminNote)

	t.Run("decided only once", func(t *testing.T) {
		rec := app.do(t, http.MethodPatch, fmt.Sprintf("/api/grade-requests/%d/decide", q2.ID), adminToken, graderequest.Decision{
			Status: graderequest.StatusApproved,
		})
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("teacher notified", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/notifications/unread-count", pedroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"count": 1}`, rec.Body.String())
	})

	t.Run("a new request after the decision", func(t *testing.T) {
		create(t, pedroToken, graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 2, Reason: "new evidence"})
	})
}
