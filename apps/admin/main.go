package main

import (
	"log"
	"net/http"
	"os"

	"github.com/sendgrid/rest"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/timeoracle"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	emailsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/email"
	logsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/logger"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database"
	sqlxrepos "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)
	appLogger := logsvc.NewRollbarLogger(logger, conf)

	codec, err := secret.NewCodec(conf.Encryption.Mode, conf.Encryption.Key)
	errAndDie(err)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	usrRepo := sqlxrepos.NewUserRepository(db)

	outClient := &rest.Client{HTTPClient: &http.Client{Timeout: conf.HTTPClientTimeout}}
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, appLogger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, outClient, appLogger)
	}

	job := reminder.NewJob(reminder.Options{
		Store: user.NewService(usrRepo, mailSvc, codec, conf),
		Clock: timeoracle.New(timeoracle.Options{
			BaseURL: conf.TimeAPI.BaseURL,
			APIKey:  conf.TimeAPI.Key,
			City:    conf.TimeAPI.City,
			Client:  outClient,
			Logger:  appLogger,
		}),
		Dispatcher: &reminder.EmailDispatcher{Mailer: mailSvc},
		Logger:     appLogger,
		Location:   conf.Reminder.Location,
		Subject:    conf.Reminder.Subject,
		Cooldown:   conf.Reminder.Cooldown,
	})

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: usrRepo,
		codec:   codec,
		job:     job,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
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
