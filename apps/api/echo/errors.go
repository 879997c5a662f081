package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
)

// classifyError maps err to a status code and a JSON-able message.
// Anything it does not recognise is a 500.
func classifyError(err error, translator ut.Translator) (int, interface{}) {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		// a missing cookie is a missing session, not a malformed request
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message
		}
		if inner, ok := cause.Internal.(*echo.HTTPError); ok {
			return inner.Code, inner.Message
		}
		return cause.Code, cause.Message

	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields

	case *core.ValidationError:
		if fields := cause.FieldMap(); fields != nil {
			return http.StatusBadRequest, fields
		}
		return http.StatusBadRequest, cause.Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// contextUserForLog is the subset of the session user attached to error reports.
func contextUserForLog(ctx echo.Context) user.User {
	var usr user.User
	if clms, err := getContextClaims(ctx); err == nil {
		usr.ID = clms.Subject
		usr.Username = clms.Username
		usr.Email = clms.Email
	}
	return usr
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler for the portal. Server
// errors are reported with the session user; a core shutdown error calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := classifyError(err, translator)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(code)
			logger.Error(msg, errors.Wrap(err, msg), contextUserForLog(ctx))
			if ctx.Echo().Debug {
				message = err.Error()
			}
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
