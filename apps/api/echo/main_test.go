package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/attendance"
	"github.com/trezcool/eskwela/core/class"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/report"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
	emailsvc "github.com/trezcool/eskwela/services/email"
	logsvc "github.com/trezcool/eskwela/services/logger"
	inmemdb "github.com/trezcool/eskwela/storage/database/inmem"
	"github.com/trezcool/eskwela/storage/kv"
	"github.com/trezcool/eskwela/testutil"
)

var (
	testConf   *core.Config
	testLogger core.Logger

	errMissingToken = httpError{Error: "missing or malformed jwt"}
	errForbidden    = httpError{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	testConf = &core.Config{
		AppName:         "Eskwela",
		Env:             "TEST",
		TestMode:        true,
		SecretKey:       "t3st-s3cr3t",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			DisableRequestLogs:        true,
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Email:      core.EmailConfig{From: "noreply@test.ph", FromName: "Eskwela"},
		Grading:    core.GradingConfig{QuarterStartMonths: grade.DefaultStartMonths},
		Attendance: core.AttendanceConfig{CheckInTTL: 10 * time.Minute, LateAfter: 15 * time.Minute},
	}

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "API : ", log.LstdFlags), testConf)
	logger.Enable(false)
	testLogger = logger

	core.ParseEmailTemplates(testLogger, true /* strict */)
	account.LoadCommonPasswords(testLogger)

	os.Exit(m.Run())
}

// testApp is a server backed by a fresh in-memory database.
type testApp struct {
	srv *Server

	userRepo    user.Repository
	studentRepo student.Repository
	teacherRepo teacher.Repository
	gradeRepo   grade.Repository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := inmemdb.Open()
	app := &testApp{
		userRepo:    inmemdb.NewUserRepository(db),
		studentRepo: inmemdb.NewStudentRepository(db),
		teacherRepo: inmemdb.NewTeacherRepository(db),
		gradeRepo:   inmemdb.NewGradeRepository(db),
	}

	cal, err := grade.NewCalendar(testConf.Grading.QuarterStartMonths)
	require.NoError(t, err)

	validate, translator := testutil.NewValidator()
	tokens := account.NewTokenGenerator(testConf.SecretKey, testConf.Server.PasswordResetTimeoutDelta)
	mailSvc := emailsvc.NewConsoleServiceMock(testConf, testLogger)

	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db))
	usrSvc := user.NewService(app.userRepo, mailSvc, tokens)
	stdSvc := student.NewService(app.studentRepo)
	tchSvc := teacher.NewService(app.teacherRepo, notifSvc, mailSvc, tokens)
	reqSvc := graderequest.NewService(inmemdb.NewGradeRequestRepository(db), stdSvc, tchSvc, notifSvc, mailSvc, testLogger)
	gradeSvc := grade.NewService(app.gradeRepo, stdSvc, reqSvc, cal)
	classSvc := class.NewService(inmemdb.NewClassRepository(db), stdSvc, tchSvc)
	attSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), kv.NewMemoryCodeStore(), classSvc, testConf.Attendance)

	app.srv = NewServer(ServerDeps{
		Conf:            testConf,
		Logger:          testLogger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		StudentSvc:      stdSvc,
		TeacherSvc:      tchSvc,
		NotificationSvc: notifSvc,
		GradeRequestSvc: reqSvc,
		GradeSvc:        gradeSvc,
		ClassSvc:        classSvc,
		AttendanceSvc:   attSvc,
		ReportSvc:       report.NewService(gradeSvc, tchSvc, reqSvc, notifSvc),
	})
	return app
}

func (app *testApp) token(t *testing.T, p account.Principal) string {
	t.Helper()
	token, err := app.srv.auth.GenerateToken(p)
	require.NoError(t, err)
	return token
}

// do serves a JSON request and returns the recorded response.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, req)
	return rec
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{}
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				assert.JSONEq(t, marshal(t, tt.wantData), rec.Body.String())
			}
		})
	}
}

func marshal(t *testing.T, obj interface{}) string {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(data)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}
