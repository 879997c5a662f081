package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
)

type cronResponse struct {
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Summary *reminder.Summary `json:"summary,omitempty"`
}

func (s *server) registerCronAPI(g *echo.Group) {
	cg := g.Group("/cron", internalTokenMiddleware(s.Conf.Reminder.CronSecret))
	cg.GET("/inactive_user_reminder", s.runInactiveUserReminder)
}

// runInactiveUserReminder writes its own {message, error} body instead of going
// through the app error handler.
func (s *server) runInactiveUserReminder(ctx echo.Context) error {
	modeParam := ctx.QueryParam("mode")
	if modeParam == "" {
		modeParam = s.Conf.Reminder.Mode
	}
	mode, err := reminder.ParseMode(modeParam)
	if err != nil {
		return core.NewFieldError("mode", err.Error())
	}

	summary, err := s.Reminder.Run(ctx.Request().Context(), mode)
	if err != nil {
		if errors.Cause(err) == reminder.ErrLocked {
			return ctx.JSON(http.StatusConflict, cronResponse{
				Message: "Reminder job already running",
				Error:   err.Error(),
			})
		}
		s.Logger.Error("running inactive user reminder", err)
		return ctx.JSON(http.StatusInternalServerError, cronResponse{
			Message: "Error running cron job",
			Error:   err.Error(),
		})
	}

	res := cronResponse{Message: "Cron job executed successfully"}
	if mode == reminder.ModeBestEffort {
		res.Summary = &summary
	}
	return ctx.JSON(http.StatusOK, res)
}
