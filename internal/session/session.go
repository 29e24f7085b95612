// Package session resolves the caller of a request into an explicit
// Session value that travels on the request context.
package session

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/model"
)

type State int

const (
	Anonymous State = iota
	AuthenticatedUser
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case AuthenticatedUser:
		return "user"
	case AuthenticatedAdmin:
		return "admin"
	}
	return "anonymous"
}

// Session describes who is making the current request.  The zero value is
// an anonymous session.
type Session struct {
	State  State
	UserID string
	Email  string
	Role   model.Role
	Token  string
}

func (s Session) Authenticated() bool { return s.State != Anonymous }
func (s Session) IsAdmin() bool       { return s.State == AuthenticatedAdmin }

const contextKey = "session"

// Attach stores s on the echo context.
func Attach(c echo.Context, s Session) { c.Set(contextKey, s) }

// From returns the session attached to c, or an anonymous one.
func From(c echo.Context) Session {
	if s, ok := c.Get(contextKey).(Session); ok {
		return s
	}
	return Session{}
}
