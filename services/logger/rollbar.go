package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a std logger.
// Without a config (tests, CLI tools) Rollbar stays disabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	if conf == nil {
		rollbar.SetEnabled(false)
		return &RollbarLogger{std: std}
	}
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

// splitArgs pulls the first user.User out of args; it becomes the Rollbar person.
func splitArgs(args []interface{}) (extras []interface{}, usr *user.User) {
	extras = make([]interface{}, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case user.User:
			if usr == nil {
				u := v
				usr = &u
			}
		default:
			extras = append(extras, arg)
		}
	}
	return extras, usr
}

// log sends to Rollbar at level (rollbar.DEBUG, rollbar.ERR...) and to the std logger.
// Supported args: error, map[string]interface{}, user.User.
func (l RollbarLogger) log(level, label, msg string, args []interface{}) {
	extras, usr := splitArgs(args)
	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, append([]interface{}{msg}, extras...)...)

	if usr != nil && usr.ID != "" {
		l.std.Printf("[%s] %s (user %s)", label, msg, usr.ID)
	} else {
		l.std.Printf("[%s] %s", label, msg)
	}
	for _, extra := range extras {
		l.std.Printf("%+v\n", extra)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, "DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, "INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, "WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, "ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, "FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
