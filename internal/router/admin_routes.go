package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/handler"
	"github.com/iliyamo/property-marketplace/internal/middleware"
)

// RegisterAdmin registers the admin area under /admin.  Standard users are
// redirected to /dashboard.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, inflight echo.MiddlewareFunc) {
	g := e.Group("/admin", middleware.RequireAdmin(), inflight)
	g.GET("", a.Overview)
	g.GET("/users", a.Users)
	g.PUT("/users/:id/role", a.SetRole)
	g.POST("/users/:id/credits", a.AdjustCredits)
	g.GET("/users/:id/transactions", a.Transactions)
	g.GET("/users/:id/reconcile", a.Reconcile)
	g.DELETE("/properties/:id", a.DeleteProperty)
	g.PUT("/properties/:id/featured", a.SetFeatured)
	g.GET("/contact", a.ContactMessages)
}
