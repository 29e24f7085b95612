package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/session"
)

// SessionCookie is the cookie that carries the access token for browser
// clients.
const SessionCookie = "session"

// Session resolves the caller on every request and attaches the result to
// the echo context.  It never rejects a request; the route gates decide.
func Session(r *session.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.Attach(c, r.Resolve(c.Request().Context(), AccessToken(c)))
			return next(c)
		}
	}
}

// AccessToken reads a bearer token from the Authorization header, falling
// back to the session cookie.
func AccessToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}
