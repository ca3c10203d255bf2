package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/eskwela/apps/api/echo"
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
	"github.com/trezcool/eskwela/storage/database"
	sqlxrepos "github.com/trezcool/eskwela/storage/database/sqlx"
	"github.com/trezcool/eskwela/storage/kv"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up the check-in code store
	var codeStore attendance.CodeStore
	if conf.Redis.Address != "" {
		client, err := kv.OpenRedis(ctx, conf.Redis)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
		}
		defer client.Close()
		codeStore = kv.NewRedisCodeStore(client)
	} else {
		logger.Warn("no redis address configured: check-in codes are kept in memory")
		codeStore = kv.NewMemoryCodeStore()
	}

	cal, err := grade.NewCalendar(conf.Grading.QuarterStartMonths)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up grading calendar: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	tokens := account.NewTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta)

	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db))
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, tokens)
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	tchSvc := teacher.NewService(sqlxrepos.NewTeacherRepository(db), notifSvc, mailSvc, tokens)
	reqSvc := graderequest.NewService(sqlxrepos.NewGradeRequestRepository(db), stdSvc, tchSvc, notifSvc, mailSvc, logger)
	gradeSvc := grade.NewService(sqlxrepos.NewGradeRepository(db), stdSvc, reqSvc, cal)
	classSvc := class.NewService(sqlxrepos.NewClassRepository(db), stdSvc, tchSvc)
	attSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), codeStore, classSvc, conf.Attendance)
	reportSvc := report.NewService(gradeSvc, tchSvc, reqSvc, notifSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	teacher.InitValidators(validate)
	class.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, false)

	account.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
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
			ReportSvc:       reportSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf.Database); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf.Database)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
