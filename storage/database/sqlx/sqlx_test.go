package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/attendance"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
	sqlxrepos "github.com/trezcool/eskwela/storage/database/sqlx"
	"github.com/trezcool/eskwela/testutil"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, repo, "Owner", "owner", "owner@test.ph", "", []string{user.RoleAdminOwner}, true)
	old := testutil.CreateUser(t, repo, "Old", "old", "", "", nil, false)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "owner", "", 0))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "x", "owner@test.ph", 0))
	assert.NoError(t, repo.CheckUniqueness(ctx, "owner", "owner@test.ph", owner.ID))

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "owner@test.ph"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)
	assert.Equal(t, []string{user.RoleAdminOwner}, got.Roles)

	inactive := false
	users, err := repo.QueryUsers(ctx, user.QueryFilter{IsActive: &inactive}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, old.ID, users[0].ID)
	assert.Empty(t, users[0].Email)

	users, err = repo.QueryUsers(ctx, user.QueryFilter{Roles: []string{"admin:o"}}, []core.DBOrdering{{Field: "name", Ascending: false}})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, owner.ID, users[0].ID)

	require.NoError(t, repo.SetLastLogin(ctx, owner.ID, time.Now().UTC()))
	got, err = repo.GetUser(ctx, user.GetFilter{ID: owner.ID})
	require.NoError(t, err)
	assert.True(t, got.LastLogin.Valid)

	require.NoError(t, repo.DeleteUsers(ctx, old.ID))
	_, err = repo.GetUser(ctx, user.GetFilter{ID: old.ID})
	assert.True(t, core.IsNotFound(err))
}

func TestGradeRepository_ReplaceGrades(t *testing.T) {
	db := testutil.PrepareDB(t)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	teacherRepo := sqlxrepos.NewTeacherRepository(db)
	gradeRepo := sqlxrepos.NewGradeRepository(db)
	reqRepo := sqlxrepos.NewGradeRequestRepository(db)
	ctx := context.Background()

	st := testutil.CreateStudent(t, studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	tch := testutil.CreateTeacher(t, teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)

	first := []grade.Grade{
		{Subject: "Math", Q1: null.Float64From(90)},
		{Subject: "Science", Q1: null.Float64From(80), Q2: null.Float64From(85.5)},
	}
	require.NoError(t, gradeRepo.ReplaceGrades(ctx, st.ID, first, 22.5, nil))

	second := []grade.Grade{{Subject: "English", Q1: null.Float64From(70)}}
	require.NoError(t, gradeRepo.ReplaceGrades(ctx, st.ID, second, 17.5, nil))

	grades, err := gradeRepo.GradesOf(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1, "no stale subject survives a replacement")
	assert.Equal(t, "English", grades[0].Subject)
	assert.Equal(t, null.Float64From(70), grades[0].Q1)
	assert.False(t, grades[0].Q2.Valid)

	got, err := studentRepo.GetStudent(ctx, student.GetFilter{ID: st.ID})
	require.NoError(t, err)
	assert.InDelta(t, 17.5, got.Average, 0.001)

	now := time.Now().UTC()
	gr, err := reqRepo.CreateGradeRequest(ctx, graderequest.GradeRequest{
		TeacherID: tch.ID, StudentID: st.ID, Quarter: 1, Reason: "typo", Status: graderequest.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	// pending requests cannot be consumed
	err = gradeRepo.ReplaceGrades(ctx, st.ID, first, 22.5, []int64{gr.ID})
	assert.True(t, core.IsConflict(err))
	grades, err = gradeRepo.GradesOf(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, grades, 1, "a failed replacement is rolled back")

	_, err = reqRepo.DecideGradeRequest(ctx, gr.ID, graderequest.StatusApproved, "", now)
	require.NoError(t, err)
	require.NoError(t, gradeRepo.ReplaceGrades(ctx, st.ID, first, 22.5, []int64{gr.ID}))
	gr, err = reqRepo.GetGradeRequest(ctx, gr.ID)
	require.NoError(t, err)
	assert.Equal(t, graderequest.StatusCompleted, gr.Status)
	assert.Equal(t, "Juan Cruz", gr.StudentName)

	assert.Equal(t, student.ErrNotFound, gradeRepo.ReplaceGrades(ctx, 999, first, 0, nil))
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewNotificationRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.CreateNotifications(ctx,
		notification.Notification{UserType: account.TypeAdmin, Title: "broadcast", CreatedAt: now},
		notification.Notification{UserType: account.TypeTeacher, UserID: null.Int64From(1), Title: "mine", CreatedAt: now.Add(time.Second)},
		notification.Notification{UserType: account.TypeTeacher, UserID: null.Int64From(2), Title: "other", CreatedAt: now},
	))

	mine := notification.QueryFilter{UserType: account.TypeTeacher, UserID: null.Int64From(1)}
	notifs, err := repo.QueryNotifications(ctx, mine)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "mine", notifs[0].Title)

	admins := notification.QueryFilter{UserType: account.TypeAdmin, UserID: null.Int64From(7), UnreadOnly: true}
	count, err := repo.CountUnread(ctx, admins)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.MarkRead(ctx, admins))
	count, err = repo.CountUnread(ctx, admins)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountUnread(ctx, notification.QueryFilter{UserType: account.TypeTeacher, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, count, "marking admin rows read leaves teacher rows alone")
}

func TestClassAndAttendanceRepositories(t *testing.T) {
	db := testutil.PrepareDB(t)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	classRepo := sqlxrepos.NewClassRepository(db)
	attRepo := sqlxrepos.NewAttendanceRepository(db)
	ctx := context.Background()

	st1 := testutil.CreateStudent(t, studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	st2 := testutil.CreateStudent(t, studentRepo, "123456789013", "Ana", "Reyes", 7, "Rizal", "")

	now := time.Now().UTC()
	c, err := classRepo.CreateClass(ctx, class.Class{
		Name: "Grade 7 - Rizal", GradeLevel: 7, Section: "Rizal", SchoolYear: "2026-2027", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	_, err = classRepo.CreateClass(ctx, class.Class{
		Name: "Grade 7 - Rizal", GradeLevel: 7, Section: "Rizal", SchoolYear: "2026-2027", CreatedAt: now, UpdatedAt: now,
	})
	assert.Equal(t, class.ErrNameExists, err)

	require.NoError(t, classRepo.Enroll(ctx, c.ID, []int64{st1.ID, st2.ID}, now))
	require.NoError(t, classRepo.Enroll(ctx, c.ID, []int64{st1.ID}, now), "enrolling twice is a no-op")

	students, err := classRepo.ClassStudents(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, st1.ID, students[0].ID)

	got, err := classRepo.GetClass(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.StudentCount)

	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	_, err = attRepo.UpsertRecords(ctx,
		attendance.Record{ClassID: c.ID, StudentID: st1.ID, Date: date, Status: attendance.StatusPresent, Method: attendance.MethodQR, RecordedAt: now},
		attendance.Record{ClassID: c.ID, StudentID: st2.ID, Date: date, Status: attendance.StatusAbsent, Method: attendance.MethodManual, RecordedAt: now},
	)
	require.NoError(t, err)
	saved, err := attRepo.UpsertRecords(ctx,
		attendance.Record{ClassID: c.ID, StudentID: st2.ID, Date: date, Status: attendance.StatusExcused, Method: attendance.MethodManual, RecordedAt: now},
	)
	require.NoError(t, err)
	assert.Equal(t, "Ana Reyes", saved[0].StudentName)

	records, err := attRepo.QueryRecords(ctx, attendance.QueryFilter{ClassID: c.ID, From: date, To: date})
	require.NoError(t, err)
	require.Len(t, records, 2, "one record per class, student and date")
	assert.Equal(t, "Ana Reyes", records[0].StudentName)
	assert.Equal(t, attendance.StatusExcused, records[0].Status)

	require.NoError(t, classRepo.Unenroll(ctx, c.ID, st2.ID))
	enrolled, err := classRepo.IsEnrolled(ctx, c.ID, st2.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}
