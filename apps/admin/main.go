package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/grade"
	"github.com/trezcool/eskwela/core/graderequest"
	"github.com/trezcool/eskwela/core/notification"
	"github.com/trezcool/eskwela/core/student"
	"github.com/trezcool/eskwela/core/teacher"
	"github.com/trezcool/eskwela/core/user"
	emailsvc "github.com/trezcool/eskwela/services/email"
	logsvc "github.com/trezcool/eskwela/services/logger"
	"github.com/trezcool/eskwela/storage/database"
	sqlxrepos "github.com/trezcool/eskwela/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	ctx := context.Background()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(ctx, conf.Database); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf.Database)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	cal, err := grade.NewCalendar(conf.Grading.QuarterStartMonths)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up grading calendar: %v", err), err)
	}

	// emails are printed to stdout
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	tokens := account.NewTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db))
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	tchSvc := teacher.NewService(sqlxrepos.NewTeacherRepository(db), notifSvc, mailSvc, tokens)
	reqSvc := graderequest.NewService(sqlxrepos.NewGradeRequestRepository(db), stdSvc, tchSvc, notifSvc, mailSvc, logger)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, tokens),
		gradeSvc: grade.NewService(sqlxrepos.NewGradeRepository(db), stdSvc, reqSvc, cal),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
