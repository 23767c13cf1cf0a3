package main

import (
	"context"
	"log"
	"os"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/reminder"
	"github.com/kazimoto/mipango/core/user"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/mongodb"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false) // CLI runs stay local

	// set up DB
	ctx := context.Background()
	db, err := mongodb.Connect(ctx, conf)
	errAndDie(err)
	defer func() { _ = mongodb.Disconnect(ctx, db) }()
	errAndDie(mongodb.EnsureIndexes(ctx, db))

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}
	core.ParseEmailTemplates(conf, appLogger)

	usrSvc := user.NewService(mongodb.NewUserRepository(db), mailSvc, conf)
	policySvc := policy.NewService(mongodb.NewPolicyRepository(db))
	planSvc := plan.NewService(mongodb.NewPlanRepository(db), usrSvc)
	eventSvc := event.NewService(mongodb.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)
	reminderSvc := reminder.NewService(planSvc, eventSvc, usrSvc, mailSvc, conf, appLogger)

	// start CLI
	cli := commandLine{
		usrSvc:      usrSvc,
		policySvc:   policySvc,
		reminderSvc: reminderSvc,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
