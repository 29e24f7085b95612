package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/session"
)

// Landing pages per role.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	AdminPath     = "/admin"
)

// RequireAuthenticated lets any signed-in user through.  Anonymous callers
// are redirected to the login page with the original target preserved.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !session.From(c).Authenticated() {
				return redirectToLogin(c)
			}
			return next(c)
		}
	}
}

// RequireUser guards the standard-user area.  Admins are sent to their own
// dashboard.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := session.From(c)
			switch {
			case !s.Authenticated():
				return redirectToLogin(c)
			case s.IsAdmin():
				return c.Redirect(http.StatusFound, AdminPath)
			}
			return next(c)
		}
	}
}

// RequireAdmin guards the admin area.  Standard users are sent to their
// dashboard.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := session.From(c)
			switch {
			case !s.Authenticated():
				return redirectToLogin(c)
			case !s.IsAdmin():
				return c.Redirect(http.StatusFound, DashboardPath)
			}
			return next(c)
		}
	}
}

func redirectToLogin(c echo.Context) error {
	target := c.Request().URL.RequestURI()
	return c.Redirect(http.StatusFound, LoginPath+"?redirectTo="+url.QueryEscape(target))
}

// SafeRedirect returns target when it is a local path, otherwise fallback.
func SafeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

// HomeFor returns the default landing page of a session.
func HomeFor(s session.Session) string {
	if s.IsAdmin() {
		return AdminPath
	}
	return DashboardPath
}
