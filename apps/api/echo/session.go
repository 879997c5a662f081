package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

func (s *server) registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	// TODO: no concurrent sessions
	g.POST("/login", s.login, s.rateLimitMiddleware)
	g.POST("/refresh", s.refresh)
	g.GET("/logout", s.logout)
	g.GET("/user", s.currentUser, authed...)

	g.POST("/password-reset", s.resetPassword, s.rateLimitMiddleware)
	g.POST("/password-reset-confirm", s.confirmPasswordReset, s.rateLimitMiddleware)
}

func identityOf(usr user.User) session.Identity {
	return session.Identity{
		ID:       usr.ID,
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		Role:     usr.Role,
	}
}

// Handlers

func (s *server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	usr, err := s.authenticate(ctx, data.Username, data.Password)
	if err != nil {
		return err
	}
	if err := s.tokens.issueCookies(ctx, usr); err != nil {
		return errors.Wrap(err, "issuing cookies")
	}
	return ctx.JSON(http.StatusOK, identityOf(usr))
}

func (s *server) currentUser(ctx echo.Context) error {
	usr, err := getContextUser(ctx, s.UserSvc)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, identityOf(usr))
}

func (s *server) refresh(ctx echo.Context) error {
	usr, err := s.refreshSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, identityOf(usr))
}

func (s *server) logout(ctx echo.Context) error {
	s.tokens.clearCookies(ctx)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Logged out."})
}

func (s *server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	err := s.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		s.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (s *server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	if _, err := s.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
