package graderequest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	inmemdb "github.com/trezcool/eskwela/storage/database/inmem"
	"github.com/trezcool/eskwela/testutil"
)

var errNotifDown = errors.New("notifications are down")

// brokenNotifications cannot store new notifications.
type brokenNotifications struct {
	notification.Repository
}

func (brokenNotifications) CreateNotifications(context.Context, ...notification.Notification) error {
	return errNotifDown
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Fatal(string, ...interface{}) {}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

type recordingMailer struct {
	sent []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

func TestService_notificationFailures(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	studentRepo := inmemdb.NewStudentRepository(db)
	teacherRepo := inmemdb.NewTeacherRepository(db)
	notifSvc := notification.NewService(brokenNotifications{inmemdb.NewNotificationRepository(db)})
	stdSvc := student.NewService(studentRepo)
	tchSvc := teacher.NewService(teacherRepo, notifSvc, nil, nil)
	logger := &recordingLogger{}
	mailer := &recordingMailer{}
	svc := graderequest.NewService(inmemdb.NewGradeRequestRepository(db), stdSvc, tchSvc, notifSvc, mailer, logger)

	tch := testutil.CreateTeacher(t, teacherRepo, "Maria", "Santos", "maria@test.ph", "", teacher.StatusApproved)
	st := testutil.CreateStudent(t, studentRepo, "123456789012", "Juan", "Cruz", 7, "Rizal", "")
	ngr := graderequest.NewGradeRequest{StudentID: st.ID, Quarter: 1, Reason: "Typo in Math"}

	gr, err := svc.Create(ctx, tch.Principal(), ngr)
	require.NoError(t, err)
	assert.Equal(t, graderequest.StatusPending, gr.Status)
	require.Len(t, logger.errors, 1)
	assert.Equal(t, fmt.Sprintf("notifying admins of grade request %d: %v", gr.ID, errNotifDown), logger.errors[0])

	stored, err := svc.Get(ctx, tch.Principal(), gr.ID)
	require.NoError(t, err)
	assert.Equal(t, gr.ID, stored.ID)

	_, err = svc.Create(ctx, tch.Principal(), ngr)
	assert.True(t, core.IsConflict(err), "the saved request is still pending")

	decided, err := svc.Decide(ctx, gr.ID, graderequest.Decision{Status: graderequest.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, graderequest.StatusApproved, decided.Status)
	require.Len(t, logger.errors, 2)
	assert.Equal(t, fmt.Sprintf("notifying teacher of grade request %d: %v", gr.ID, errNotifDown), logger.errors[1])
	if assert.Len(t, mailer.sent, 1) {
		assert.Equal(t, "maria@test.ph", mailer.sent[0].To[0].Address)
	}
}
