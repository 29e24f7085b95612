// Package router registers the HTTP routes of the service.  Page routes
// return JSON view models; the route gates turn missing or wrong sessions
// into redirects.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/handler"
	"github.com/iliyamo/property-marketplace/internal/metrics"
	"github.com/iliyamo/property-marketplace/internal/middleware"
)

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers sign-up, sign-in and session endpoints.  None of
// them require an existing session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.GET("/login", a.LoginPage)

	g := e.Group("/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.GET("/session", a.Session)
}

// RegisterPublic registers the visitor pages and listing creation.  The
// landing and browse pages go through the response cache, which only ever
// serves anonymous callers.  Detail pages are never cached because each
// hit counts a view.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, l *handler.ListingHandler, cache, inflight echo.MiddlewareFunc) {
	e.GET("/", p.Landing, cache)
	e.GET("/properties", p.Browse, cache)
	e.GET("/properties/:id", p.Detail)
	e.POST("/properties/:id/inquiries", p.Inquire, inflight)
	e.POST("/contact", p.Contact, inflight)

	e.GET("/properties/create", l.CreateForm, middleware.RequireAuthenticated())
	e.POST("/properties", l.Create, middleware.RequireAuthenticated(), inflight)
}
