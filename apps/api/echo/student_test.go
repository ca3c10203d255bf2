package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/testutil"
)

func fptr(f float64) *float64 { return &f }

func Test_studentApi_crud(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	tch := testutil.CreateTeacher(t, app.teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)
	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	other := testutil.CreateStudent(t, app.studentRepo, "123456789013", "Ana", "Reyes", 8, "Mabini", "")

	adminToken := app.token(t, admin.Principal())
	tchToken := app.token(t, tch.Principal())
	stToken := app.token(t, st.Principal())

	newStudent := student.NewStudent{
		LRN: "123456789014", FirstName: "Jose", LastName: "Rizal", Sex: "male", GradeLevel: 10,
		Section: "Bonifacio", Password: "passw0rd!", PasswordConfirm: "passw0rd!",
	}
	dupLRN := newStudent
	dupLRN.LRN = st.LRN

	app.run(t, []httpTest{
		{name: "auth required", path: "/api/students", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "students cannot list", path: "/api/students", token: stToken, wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "teachers can list", path: "/api/students?ordering=last_name", token: tchToken, wantData: []student.Student{st, other}},
		{name: "search", path: "/api/students?search=ana", token: adminToken, wantData: []student.Student{other}},
		{name: "grade level", path: "/api/students?grade_level=7", token: adminToken, wantData: []student.Student{st}},
		{name: "self", path: fmt.Sprintf("/api/students/%d", st.ID), token: stToken, wantData: st},
		{name: "someone else", path: fmt.Sprintf("/api/students/%d", other.ID), token: stToken, wantCode: http.StatusForbidden},
		{name: "not found", path: "/api/students/999", token: adminToken, wantCode: http.StatusNotFound},
		{name: "malformed ID", path: "/api/students/abc", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "teachers cannot create", method: http.MethodPost, path: "/api/students", body: newStudent,
			token: tchToken, wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate LRN", method: http.MethodPost, path: "/api/students", body: dupLRN,
			token: adminToken, wantCode: http.StatusBadRequest,
		},
		{name: "create", method: http.MethodPost, path: "/api/students", body: newStudent, token: adminToken, wantCode: http.StatusCreated},
		{
			name: "update", method: http.MethodPut, path: fmt.Sprintf("/api/students/%d", other.ID),
			body: map[string]interface{}{"section": "Luna"}, token: adminToken,
		},
		{name: "delete", method: http.MethodDelete, path: fmt.Sprintf("/api/students/%d", other.ID), token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: fmt.Sprintf("/api/students/%d", other.ID), token: adminToken, wantCode: http.StatusNotFound},
	})

	updated, err := app.studentRepo.GetStudent(context.Background(), student.GetFilter{LRNOrEmail: "123456789014"})
	require.NoError(t, err)
	assert.Equal(t, "Jose Rizal", updated.FullName())
	assert.NoError(t, updated.CheckPassword("passw0rd!"))
}

func Test_studentApi_replaceGrades(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	adminToken := app.token(t, admin.Principal())
	path := fmt.Sprintf("/api/students/%d/grades", st.ID)

	put := func(t *testing.T, rg grade.ReplaceGrades) grade.StudentGrades {
		rec := app.do(t, http.MethodPut, path, adminToken, rg)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sg grade.StudentGrades
		decode(t, rec, &sg)
		return sg
	}

	t.Run("one quarter", func(t *testing.T) {
		sg := put(t, grade.ReplaceGrades{Grades: []grade.SubjectInput{{Subject: "Math", Q1: fptr(90)}}})
		require.Len(t, sg.Grades, 1)
		assert.Equal(t, 22.50, sg.Grades[0].Average)
		assert.Equal(t, 22.50, sg.FinalAverage)
		assert.Equal(t, 22.50, sg.Average)
	})

	t.Run("full replacement", func(t *testing.T) {
		put(t, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "Math", Q1: fptr(90), Q2: fptr(85)},
			{Subject: "Science", Q1: fptr(80)},
		}})
		sg := put(t, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "math", Q1: fptr(90), Q2: fptr(90), Q3: fptr(90), Q4: fptr(90)},
			{Subject: "English", Q1: fptr(80), Q2: fptr(80), Q3: fptr(80), Q4: fptr(80)},
		}})
		require.Len(t, sg.Grades, 2)
		assert.Equal(t, 85.0, sg.FinalAverage)

		grades, err := app.gradeRepo.GradesOf(context.Background(), st.ID)
		require.NoError(t, err)
		subjects := make([]string, 0, len(grades))
		for _, g := range grades {
			subjects = append(subjects, g.Subject)
		}
		assert.ElementsMatch(t, []string{"math", "English"}, subjects)

		stored, err := app.studentRepo.GetStudent(context.Background(), student.GetFilter{ID: st.ID})
		require.NoError(t, err)
		assert.Equal(t, 85.0, stored.Average)
	})

	t.Run("no subjects", func(t *testing.T) {
		sg := put(t, grade.ReplaceGrades{Grades: []grade.SubjectInput{}})
		assert.Empty(t, sg.Grades)
		assert.Equal(t, 0.0, sg.FinalAverage)
	})

	app.run(t, []httpTest{
		{
			name: "out of range", method: http.MethodPut, path: path, token: adminToken, wantCode: http.StatusBadRequest,
			body: grade.ReplaceGrades{Grades: []grade.SubjectInput{{Subject: "Math", Q2: fptr(100.5)}}},
		},
		{
			name: "blank subject", method: http.MethodPut, path: path, token: adminToken, wantCode: http.StatusBadRequest,
			body: grade.ReplaceGrades{Grades: []grade.SubjectInput{{Subject: "  ", Q1: fptr(80)}}},
		},
		{
			name: "duplicate subject", method: http.MethodPut, path: path, token: adminToken, wantCode: http.StatusBadRequest,
			body: grade.ReplaceGrades{Grades: []grade.SubjectInput{{Subject: "Math"}, {Subject: "MATH"}}},
			wantData: httpError{Error: invalidDataMsg, Details: map[string]string{"grades[1].subject": "duplicate subject (see grades[0])"}},
		},
		{
			name: "students cannot edit", method: http.MethodPut, path: path, token: app.token(t, st.Principal()),
			body: grade.ReplaceGrades{}, wantCode: http.StatusForbidden,
		},
		{
			name: "unknown student", method: http.MethodPut, path: "/api/students/999/grades", token: adminToken,
			body: grade.ReplaceGrades{}, wantCode: http.StatusNotFound,
		},
	})
}

func Test_studentApi_gradeLock(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	tch := testutil.CreateTeacher(t, app.teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)
	colleague := testutil.CreateTeacher(t, app.teacherRepo, "Pedro", "Reyes", "pedro@test.ph", "", teacher.StatusApproved)
	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	adminToken := app.token(t, admin.Principal())
	tchToken := app.token(t, tch.Principal())
	gradesPath := fmt.Sprintf("/api/students/%d/grades", st.ID)

	// Q1 is filled for every subject: Q2 is the current quarter
	rec := app.do(t, http.MethodPut, gradesPath, adminToken, grade.ReplaceGrades{Grades: []grade.SubjectInput{
		{Subject: "Math", Q1: fptr(90)},
		{Subject: "Science", Q1: fptr(80)},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/grade-lock", st.ID), tchToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lock grade.Lock
	decode(t, rec, &lock)
	assert.Equal(t, grade.Quarter(2), lock.CurrentQuarter)
	require.Len(t, lock.Subjects, 2)
	assert.Equal(t, grade.StatusSubmitted, lock.Subjects[0].Statuses["q1"])
	assert.Equal(t, grade.StatusEditable, lock.Subjects[0].Statuses["q2"])
	assert.Equal(t, grade.StatusNotSubmitted, lock.Subjects[0].Statuses["q3"])

	changeQ1 := grade.ReplaceGrades{Grades: []grade.SubjectInput{
		{Subject: "Math", Q1: fptr(95), Q2: fptr(88)},
		{Subject: "Science", Q1: fptr(80)},
	}}

	t.Run("current quarter is editable", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "Math", Q1: fptr(90), Q2: fptr(88)},
			{Subject: "Science", Q1: fptr(80)},
		}})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("past quarter is locked", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, changeQ1)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		assert.JSONEq(t, marshal(t, httpError{Error: "Q1 grades are locked: request an edit from the administration"}), rec.Body.String())
	})

	t.Run("removing a subject changes its quarters", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "Math", Q1: fptr(90), Q2: fptr(88)},
		}})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	// request an edit of Q1
	rec = app.do(t, http.MethodPost, "/api/grade-requests", tchToken, graderequest.NewGradeRequest{
		StudentID: st.ID, Quarter: 1, Reason: "Encoding error on the Math exam",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var gr graderequest.GradeRequest
	decode(t, rec, &gr)
	assert.Equal(t, graderequest.StatusPending, gr.Status)
	assert.Equal(t, "Maria Santos", gr.TeacherName)
	assert.Equal(t, "Juan Cruz", gr.StudentName)

	t.Run("pending request keeps the lock", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, changeQ1)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/grade-lock", st.ID), tchToken, nil)
		var lock grade.Lock
		decode(t, rec, &lock)
		assert.Equal(t, []grade.Quarter{1}, lock.PendingQuarters)
		assert.Equal(t, grade.StatusEditable, lock.Subjects[0].Statuses["q2"])
	})

	rec = app.do(t, http.MethodPatch, fmt.Sprintf("/api/grade-requests/%d/decide", gr.ID), adminToken, graderequest.Decision{
		Status: graderequest.StatusApproved,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("approved request only unlocks for its teacher", func(t *testing.T) {
		colleagueToken := app.token(t, colleague.Principal())
		rec := app.do(t, http.MethodPut, gradesPath, colleagueToken, changeQ1)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		for _, tt := range []struct {
			name         string
			token        string
			wantApproved []grade.Quarter
			wantQ1       grade.QuarterStatus
		}{
			{name: "requester", token: tchToken, wantApproved: []grade.Quarter{1}, wantQ1: grade.StatusEditable},
			{name: "colleague", token: colleagueToken, wantApproved: []grade.Quarter{}, wantQ1: grade.StatusSubmitted},
		} {
			rec := app.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/grade-lock", st.ID), tt.token, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var lock grade.Lock
			decode(t, rec, &lock)
			assert.Equal(t, tt.wantApproved, lock.ApprovedQuarters, tt.name)
			assert.Equal(t, tt.wantQ1, lock.Subjects[0].Statuses["q1"], tt.name)
		}

		rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/grade-requests/%d", gr.ID), adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stillApproved graderequest.GradeRequest
		decode(t, rec, &stillApproved)
		assert.Equal(t, graderequest.StatusApproved, stillApproved.Status)
	})

	t.Run("approved request unlocks and is consumed", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, changeQ1)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sg grade.StudentGrades
		decode(t, rec, &sg)
		assert.Equal(t, 95.0, sg.Grades[0].Q1.Float64)

		rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/grade-requests/%d", gr.ID), tchToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var consumed graderequest.GradeRequest
		decode(t, rec, &consumed)
		assert.Equal(t, graderequest.StatusCompleted, consumed.Status)
	})

	t.Run("consumed request locks again", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, tchToken, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "Math", Q1: fptr(70), Q2: fptr(88)},
			{Subject: "Science", Q1: fptr(80)},
		}})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	t.Run("admins bypass the lock", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, gradesPath, adminToken, grade.ReplaceGrades{Grades: []grade.SubjectInput{
			{Subject: "Math", Q1: fptr(70), Q2: fptr(88)},
		}})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_studentApi_withGrades(t *testing.T) {
	app := newTestApp(t)

	admin := testutil.CreateUser(t, app.userRepo, "Admin", "admin", "admin@test.ph", "", nil, true)
	st := testutil.CreateStudent(t, app.studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	other := testutil.CreateStudent(t, app.studentRepo, "123456789013", "Ana", "Reyes", 7, "Rizal", "")
	adminToken := app.token(t, admin.Principal())

	rec := app.do(t, http.MethodPut, fmt.Sprintf("/api/students/%d/grades", st.ID), adminToken, grade.ReplaceGrades{
		Grades: []grade.SubjectInput{{Subject: "Math", Q1: fptr(80), Q2: fptr(80), Q3: fptr(80), Q4: fptr(80)}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("all", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/students/with-grades?ordering=-average", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var all []grade.StudentGrades
		decode(t, rec, &all)
		require.Len(t, all, 2)
		assert.Equal(t, st.ID, all[0].ID)
		assert.Equal(t, 80.0, all[0].FinalAverage)
		assert.Equal(t, other.ID, all[1].ID)
		assert.Empty(t, all[1].Grades)
	})

	t.Run("own grades", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/with-grades", st.ID), app.token(t, st.Principal()), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sg grade.StudentGrades
		decode(t, rec, &sg)
		assert.Equal(t, 80.0, sg.FinalAverage)
		require.Len(t, sg.Grades, 1)
		assert.Equal(t, 80.0, sg.Grades[0].Average)
	})

	app.run(t, []httpTest{
		{
			name: "other student's grades", path: fmt.Sprintf("/api/students/%d/with-grades", st.ID),
			token: app.token(t, other.Principal()), wantCode: http.StatusForbidden,
		},
		{name: "students cannot list", path: "/api/students/with-grades", token: app.token(t, other.Principal()), wantCode: http.StatusForbidden},
	})
}
