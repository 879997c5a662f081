package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
)

const (
	reauthParam      = "reauth"
	wrongRoleWarning = "You are not authorized to access this page."
)

// guard resolves the session identity of a page request and lets it through only if
// its role is one of roles. A missing identity gets one refresh and a full reload,
// a wrong role is logged out and sent to the login page with a warning.
func (s *server) guard(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()
			res := s.Resolver.Resolve(reqCtx, ctx.Cookies())
			for _, c := range res.SetCookies {
				ctx.SetCookie(c)
			}

			var warning string
			state, _ := session.Start() // placeholder is never sent, resolution is synchronous
			event := session.Classify(res.Identity, roles)
			for {
				var effect session.Effect
				state, effect = session.Next(state, event)
				switch effect {
				case session.RenderView:
					ctx.Set(contextIdentityKey, res.Identity)
					return next(ctx)

				case session.AttemptRefresh:
					event = session.EventRefreshFailed
					if res.Redirect || ctx.QueryParam(reauthParam) != "" {
						continue
					}
					set, err := s.Resolver.Refresh(reqCtx, ctx.Cookies())
					if err != nil {
						continue
					}
					for _, c := range set {
						ctx.SetCookie(c)
					}
					event = session.EventRefreshSucceeded

				case session.Reload:
					s.guardRedirect("reload")
					return ctx.Redirect(http.StatusSeeOther, reloadURL(ctx.Request().URL))

				case session.WarnAndLogout:
					warning = wrongRoleWarning
					// result ignored, the local cookies are cleared either way
					_ = s.Resolver.Logout(reqCtx, ctx.Cookies())
					s.tokens.clearCookies(ctx)
					event = session.EventLoggedOut

				case session.RedirectLogin:
					reason := "no_session"
					if warning != "" {
						reason = "wrong_role"
					}
					s.guardRedirect(reason)
					return ctx.Redirect(http.StatusSeeOther, loginURL(ctx.Request().URL, warning))

				default:
					return errors.Errorf("guard stuck in state %s", state)
				}
			}
		}
	}
}

func (s *server) guardRedirect(reason string) {
	if s.Metrics != nil {
		s.Metrics.GuardRedirect(reason)
	}
}

func getContextIdentity(ctx echo.Context) *session.Identity {
	id, _ := ctx.Get(contextIdentityKey).(*session.Identity)
	return id
}

// reloadURL marks u so that a second miss goes to the login page.
func reloadURL(u *url.URL) string {
	q := u.Query()
	q.Set(reauthParam, "1")
	return (&url.URL{Path: u.Path, RawQuery: q.Encode()}).String()
}

func loginURL(from *url.URL, warning string) string {
	q := make(url.Values)
	if warning != "" {
		q.Set("warning", warning)
	} else {
		next := from.Query()
		next.Del(reauthParam)
		q.Set("next", (&url.URL{Path: from.Path, RawQuery: next.Encode()}).String())
	}
	return "/login?" + q.Encode()
}
