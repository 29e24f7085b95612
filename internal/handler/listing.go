package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/session"
)

// ListingHandler creates listings against the caller's credits.
type ListingHandler struct {
	Ledger *service.Ledger
}

// CreateForm returns the view model of the create page: the balance and
// whether a listing can be created with it.
func (h *ListingHandler) CreateForm(c echo.Context) error {
	s := session.From(c)
	balance, err := h.Ledger.GetBalance(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"credits":    balance,
		"cost":       service.ListingCost,
		"can_create": balance >= service.ListingCost,
	})
}

// Create handles POST /properties.  One credit is deducted in the same
// transaction that stores the listing.
func (h *ListingHandler) Create(c echo.Context) error {
	var in model.PropertyInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	p, err := h.Ledger.CreateListing(c.Request().Context(), session.From(c).UserID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}
