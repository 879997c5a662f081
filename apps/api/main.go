package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/rest"

	echoapi "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/apps/api/echo"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/timeoracle"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	emailsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/email"
	locksvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/lock"
	logsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/logger"
	metricsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/metrics"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database"
	sqlxrepos "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database/sqlx"
)

const internalBaseURL = "http://portal.internal"

// TODO:
// - CSRF on the login form
// - Serve static files
func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	codec, err := secret.NewCodec(conf.Encryption.Mode, conf.Encryption.Key)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up codec: %v", err), err)
	}

	// outbound HTTP
	outClient := &rest.Client{HTTPClient: &http.Client{Timeout: conf.HTTPClientTimeout}}

	// portal API client: in-process unless API_BASE_URL points elsewhere
	var server echoapi.Server
	apiClient := &rest.Client{HTTPClient: &http.Client{
		Timeout: conf.HTTPClientTimeout,
		Transport: &session.HandlerTransport{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			server.ServeHTTP(w, r)
		})},
	}}
	apiBaseURL := internalBaseURL
	if conf.APIBaseURL != "" {
		apiBaseURL = conf.APIBaseURL
		apiClient = outClient
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, outClient, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, codec, conf)
	metrics := metricsvc.New()

	oracle := timeoracle.New(timeoracle.Options{
		BaseURL:    conf.TimeAPI.BaseURL,
		APIKey:     conf.TimeAPI.Key,
		City:       conf.TimeAPI.City,
		Client:     outClient,
		Logger:     logger,
		OnFallback: metrics.TimeFallback,
	})

	jobOpts := reminder.Options{
		Store:      usrSvc,
		Clock:      oracle,
		Dispatcher: &reminder.HTTPDispatcher{BaseURL: apiBaseURL, Token: conf.Reminder.CronSecret, Client: apiClient},
		Logger:     logger,
		Location:   conf.Reminder.Location,
		Subject:    conf.Reminder.Subject,
		Cooldown:   conf.Reminder.Cooldown,
		Observer:   metrics,
	}
	if conf.Redis.Addr != "" {
		rdb, err := locksvc.Open(context.Background(), conf.Redis)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		jobOpts.Locker = locksvc.NewRedisLocker(rdb, logger)
	}
	job := reminder.NewJob(jobOpts)

	defaultMode, err := reminder.ParseMode(conf.Reminder.Mode)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing REMINDER_MODE: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		MailSvc:    mailSvc,
		Resolver:   session.NewResolver(session.Options{BaseURL: apiBaseURL, Client: apiClient, Logger: logger}),
		Reminder:   job,
		Metrics:    metrics,
		Validate:   validate,
		Translator: translator,
	})

	go func() {
		server.Start()
	}()

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	reminder.Start(jobCtx, job, conf.Reminder.Interval, defaultMode, logger)

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		stopJobs()

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

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		return nil, err
	}
	return db, nil
}
