package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/handler"
	"github.com/iliyamo/property-marketplace/internal/middleware"
)

// RegisterDashboard registers the standard user area under /dashboard.
// Anonymous callers go to the login page and admins to /admin.
func RegisterDashboard(e *echo.Echo, d *handler.DashboardHandler, inflight echo.MiddlewareFunc) {
	g := e.Group("/dashboard", middleware.RequireUser(), inflight)
	g.GET("", d.Overview)
	g.GET("/properties", d.MyProperties)
	g.PUT("/properties/:id", d.UpdateProperty)
	g.DELETE("/properties/:id", d.DeleteProperty)
	g.POST("/properties/:id/images", d.UploadImage)
	g.GET("/properties/:id/inquiries", d.PropertyInquiries)
	g.GET("/profile", d.Profile)
	g.PUT("/profile", d.UpdateProfile)
	g.GET("/credits", d.Credits)
}
