package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

func (s *server) registerMailAPI(g *echo.Group) {
	g.POST("/sendmail", s.sendMail, s.internalOrAdminMiddleware)
}

// internalOrAdminMiddleware lets through internal callers presenting the cron secret,
// and signed-in admins. Without a configured secret the endpoint is open.
func (s *server) internalOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	internal := internalTokenMiddleware(s.Conf.Reminder.CronSecret)(next)
	return func(ctx echo.Context) error {
		if c, err := ctx.Cookie(session.AccessCookie); err == nil && c.Value != "" {
			if claims, err := s.tokens.parse(c.Value); err == nil &&
				claims.TokenType == tokenTypeAccess && claims.Role == user.RoleAdmin {
				return next(ctx)
			}
		}
		return internal(ctx)
	}
}

func (s *server) sendMail(ctx echo.Context) error {
	var data SendMailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendMailRequest")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	msg := core.NewTextMessage(data.Recipient, data.Subject, data.Text)
	if err := s.MailSvc.SendMessage(ctx.Request().Context(), msg); err != nil {
		return errors.Wrap(err, "sending mail")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Email sent."})
}
