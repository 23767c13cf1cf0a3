package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	echoapi "github.com/kazimoto/mipango/apps/api/echo"
	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/chat"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/reminder"
	"github.com/kazimoto/mipango/core/user"
	assistantsvc "github.com/kazimoto/mipango/services/assistant"
	emailsvc "github.com/kazimoto/mipango/services/email"
	logsvc "github.com/kazimoto/mipango/services/logger"
	"github.com/kazimoto/mipango/storage/mongodb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := mongodb.Connect(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = mongodb.Disconnect(context.Background(), db); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()
	if err = mongodb.EnsureIndexes(context.Background(), db); err != nil {
		logger.Fatal(fmt.Sprintf("ensuring indexes: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(mongodb.NewUserRepository(db), mailSvc, conf)
	policySvc := policy.NewService(mongodb.NewPolicyRepository(db))
	planSvc := plan.NewService(mongodb.NewPlanRepository(db), usrSvc)
	eventSvc := event.NewService(mongodb.NewEventRepository(db), usrSvc, planSvc, mailSvc, conf)
	chatSvc := chat.NewService(
		mongodb.NewChatRepository(db),
		assistantsvc.NewAmplifyService(conf, logger),
		policySvc,
		logger,
	)
	reminderSvc := reminder.NewService(planSvc, eventSvc, usrSvc, mailSvc, conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	if err = policySvc.Refresh(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("loading policy snapshot: %v", err), err)
	}

	var limiter echoapi.RateLimiter
	if conf.Redis.Addr != "" {
		if limiter, err = echoapi.NewRedisRateLimiter(conf, logger); err != nil {
			logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
		}
	} else {
		limiter = echoapi.NewMemoryRateLimiter()
	}
	defer func() { _ = limiter.Close() }()

	// =========================================================================
	// Start Reminder Cron

	sched := cron.New()
	if _, err = sched.AddFunc(conf.Reminder.CronSpec, func() {
		if _, rErr := reminderSvc.Run(context.Background(), time.Now()); rErr != nil {
			logger.Error(fmt.Sprintf("reminder sweep: %v", rErr), rErr)
		}
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling reminder sweep: %v", err), err)
	}
	sched.Start()
	defer sched.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if dErr := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); dErr != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", dErr), dErr)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			PlanSvc:     planSvc,
			EventSvc:    eventSvc,
			PolicySvc:   policySvc,
			ChatSvc:     chatSvc,
			Validate:    validate,
			Translator:  translator,
			RateLimiter: limiter,
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
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
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

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
