package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

var roleHomes = map[string]string{
	user.RoleAlumni:  "/alumni/feed",
	user.RolePartner: "/partner",
	user.RoleAdmin:   "/admin",
}

func (s *server) registerPages() {
	s.app.GET("/", s.page("home", "Home"))
	s.app.GET("/about", s.page("about", "About"))
	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.loginForm, s.rateLimitMiddleware)
	s.app.GET("/logout", s.logoutPage)

	ag := s.app.Group("/alumni", s.guard(user.RoleAlumni))
	ag.GET("/feed", s.feedPage)
	ag.GET("/events", s.page("events", "Events"))
	ag.GET("/donations", s.page("donations", "Donation Drives"))

	s.app.GET("/partner", s.page("partner", "Partner"), s.guard(user.RolePartner))

	adg := s.app.Group("/admin", s.guard(user.RoleAdmin))
	adg.GET("", s.page("admin", "Admin"))
	adg.GET("/users", s.adminUsersPage)
}

func (s *server) newPageData(ctx echo.Context, title string) pageData {
	return pageData{
		Title:    title,
		AppName:  s.Conf.AppName,
		Identity: getContextIdentity(ctx),
	}
}

func (s *server) page(name, title string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.Render(http.StatusOK, name, s.newPageData(ctx, title))
	}
}

func (s *server) loginPage(ctx echo.Context) error {
	data := s.newPageData(ctx, "Log in")
	data.Warning = ctx.QueryParam("warning")
	data.Next = ctx.QueryParam("next")
	return ctx.Render(http.StatusOK, "login", data)
}

func (s *server) loginForm(ctx echo.Context) error {
	var form LoginRequest
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data := s.newPageData(ctx, "Log in")
	data.Next = ctx.FormValue("next")

	if err := form.Validate(s.Validate); err != nil {
		data.Error = "Username and password are required."
		return ctx.Render(http.StatusBadRequest, "login", data)
	}
	usr, err := s.authenticate(ctx, form.Username, form.Password)
	if err != nil {
		herr, ok := errors.Cause(err).(*echo.HTTPError)
		if !ok {
			return err
		}
		data.Error = "Invalid username or password."
		if herr == errAccountDeactivated {
			data.Error = "Your account has been deactivated."
		}
		return ctx.Render(herr.Code, "login", data)
	}
	if err := s.tokens.issueCookies(ctx, usr); err != nil {
		return errors.Wrap(err, "issuing cookies")
	}
	return ctx.Redirect(http.StatusSeeOther, afterLoginURL(data.Next, usr.Role))
}

func (s *server) logoutPage(ctx echo.Context) error {
	s.tokens.clearCookies(ctx)
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (s *server) feedPage(ctx echo.Context) error {
	data := s.newPageData(ctx, "Feed")
	p, err := s.UserSvc.GetProfile(ctx.Request().Context(), data.Identity.ID)
	switch {
	case err == nil:
		data.Profile = &p
	case errors.Cause(err) != user.ErrProfileNotFound:
		return errors.Wrap(err, "getting profile")
	}
	return ctx.Render(http.StatusOK, "feed", data)
}

func (s *server) adminUsersPage(ctx echo.Context) error {
	data := s.newPageData(ctx, "Users")
	ordering := new(Ordering)
	ordering.Bind(ctx)
	users, err := s.UserSvc.Query(ctx.Request().Context(), new(user.QueryFilter), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	data.Users = users
	return ctx.Render(http.StatusOK, "admin_users", data)
}

// afterLoginURL returns next if it is a local path, the role's home page otherwise.
func afterLoginURL(next, role string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\") {
		return next
	}
	if home, ok := roleHomes[role]; ok {
		return home
	}
	return "/"
}
