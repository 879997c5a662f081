// Package reminder emails users who have not logged in for a while.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

type Mode string

const (
	// ModeFailFast aborts the batch on the first dispatch error.
	ModeFailFast Mode = "fail-fast"
	// ModeBestEffort keeps going and reports every user in the Summary.
	ModeBestEffort Mode = "best-effort"
)

// Dispatch statuses
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run outcomes
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeLocked    = "locked"
)

const (
	lockKey        = "reminder:inactive_users"
	defaultLockTTL = 10 * time.Minute
)

var (
	ErrUnknownMode = errors.New("unknown reminder mode")
	ErrLocked      = errors.New("a reminder run is already in progress")
)

func ParseMode(s string) (Mode, error) {
	switch Mode(core.CleanString(s, true /* lower */)) {
	case ModeFailFast:
		return ModeFailFast, nil
	case ModeBestEffort:
		return ModeBestEffort, nil
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

type (
	Store interface {
		QueryInactive(ctx context.Context, cutoff time.Time) ([]user.InactiveUser, error)
		MarkReminded(ctx context.Context, id string, at time.Time) error
	}

	// Clock returns the authoritative current datetime.
	Clock interface {
		Datetime(ctx context.Context) string
	}

	// Locker prevents overlapping runs across processes.
	// Acquire returns ErrLocked if the key is held.
	Locker interface {
		Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	}

	Observer interface {
		ObserveDispatch(status string)
		ObserveRun(outcome string)
	}
)

type Result struct {
	UserID    string `json:"user_id"`
	Recipient string `json:"recipient,omitempty"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

type Summary struct {
	Mode      Mode      `json:"mode"`
	Cutoff    time.Time `json:"cutoff"`
	Qualified int       `json:"qualified"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Results   []Result  `json:"results"`
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusSent:
		s.Sent++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

type Options struct {
	Store      Store
	Clock      Clock
	Dispatcher Dispatcher
	Logger     core.Logger
	Location   *time.Location
	Subject    string
	// Cooldown skips users reminded less than Cooldown ago. Zero disables it.
	Cooldown time.Duration
	Locker   Locker // optional
	LockTTL  time.Duration
	Observer Observer // optional
}

type Job struct {
	opts Options
}

func NewJob(opts Options) *Job {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Store, "Store"),
		vala.IsNotNil(opts.Clock, "Clock"),
		vala.IsNotNil(opts.Dispatcher, "Dispatcher"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Location, "Location"),
	).CheckAndPanic()

	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &Job{opts: opts}
}

// Run reminds every active user whose last login is at or before the cutoff and who
// has a profile email. Dispatches are sequential, in last login order.
func (j *Job) Run(ctx context.Context, mode Mode) (summary Summary, err error) {
	summary.Mode = mode
	if j.opts.Locker != nil {
		release, err := j.opts.Locker.Acquire(ctx, lockKey, j.opts.LockTTL)
		if err != nil {
			if errors.Cause(err) == ErrLocked {
				j.observeRun(OutcomeLocked)
			}
			return summary, err
		}
		defer release()
	}
	defer func() {
		switch {
		case err != nil:
			j.observeRun(OutcomeFailed)
		case summary.Failed > 0:
			j.observeRun(OutcomePartial)
		default:
			j.observeRun(OutcomeCompleted)
		}
	}()

	now, err := ParseServerTime(j.opts.Clock.Datetime(ctx), j.opts.Location)
	if err != nil {
		return summary, errors.Wrap(err, "reading server time")
	}
	summary.Cutoff = Cutoff(now, j.opts.Location, InactivityMonths)

	users, err := j.opts.Store.QueryInactive(ctx, summary.Cutoff)
	if err != nil {
		return summary, errors.Wrap(err, "querying inactive users")
	}
	summary.Qualified = len(users)
	summary.Results = make([]Result, 0, len(users))

	for _, iu := range users {
		res, err := j.remind(ctx, iu, now)
		summary.add(res)
		if err != nil && mode != ModeBestEffort {
			return summary, err
		}
	}
	j.opts.Logger.Info(fmt.Sprintf("inactive user reminder: %d sent, %d skipped, %d failed",
		summary.Sent, summary.Skipped, summary.Failed))
	return summary, nil
}

func (j *Job) remind(ctx context.Context, iu user.InactiveUser, now time.Time) (Result, error) {
	res := Result{UserID: iu.User.ID, Recipient: iu.Recipient()}
	switch {
	case res.Recipient == "":
		res.Status, res.Detail = StatusSkipped, "no profile email"
		return res, nil
	case j.recentlyReminded(iu.User, now):
		res.Status, res.Detail = StatusSkipped, "reminded within cooldown"
		return res, nil
	}

	err := j.opts.Dispatcher.Dispatch(ctx, Mail{
		Recipient: res.Recipient,
		Subject:   j.opts.Subject,
		Text:      reminderText(iu, j.opts.Location),
	})
	if err != nil {
		res.Status, res.Detail = StatusFailed, err.Error()
		j.observeDispatch(StatusFailed)
		j.opts.Logger.Warn(fmt.Sprintf("reminding user %s failed", iu.User.ID), err)
		return res, err
	}

	res.Status = StatusSent
	j.observeDispatch(StatusSent)
	if err := j.opts.Store.MarkReminded(ctx, iu.User.ID, now.UTC()); err != nil {
		j.opts.Logger.Error(fmt.Sprintf("recording reminder for user %s", iu.User.ID), err)
	}
	return res, nil
}

func (j *Job) recentlyReminded(usr user.User, now time.Time) bool {
	if j.opts.Cooldown <= 0 || usr.LastRemindedAt.IsZero() {
		return false
	}
	return now.Sub(usr.LastRemindedAt) < j.opts.Cooldown
}

func (j *Job) observeDispatch(status string) {
	if j.opts.Observer != nil {
		j.opts.Observer.ObserveDispatch(status)
	}
}

func (j *Job) observeRun(outcome string) {
	if j.opts.Observer != nil {
		j.opts.Observer.ObserveRun(outcome)
	}
}

func reminderText(iu user.InactiveUser, loc *time.Location) string {
	name := iu.Profile.FirstName
	if name == "" {
		name = iu.User.Name
	}
	return fmt.Sprintf(
		"Hi %s,\n\nWe have not seen you on the alumni portal since %s. "+
			"Log in to catch up on the latest feed, events and donation drives.\n",
		name, iu.User.LastLogin.In(loc).Format("January 2, 2006"),
	)
}
