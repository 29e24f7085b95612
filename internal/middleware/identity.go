package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/session"
)

// userID returns the caller's id for Redis keys, or "guest".
func userID(c echo.Context) string {
	if s := session.From(c); s.Authenticated() {
		return s.UserID
	}
	return "guest"
}
