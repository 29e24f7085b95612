package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/session"
)

// AdminHandler serves the admin area.  Routes are mounted behind
// RequireAdmin, and ledger calls pass the admin flag from the session
// again.
type AdminHandler struct {
	Profiles   *repository.ProfileRepo
	Properties *repository.PropertyRepo
	Ledger     *service.Ledger
	Contacts   *repository.ContactRepo
	Roles      identity.RoleSyncer // nil when the provider keeps no claim
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=agent developer admin"`
}

type creditReq struct {
	Amount int    `json:"amount" validate:"required,min=-1000,max=1000"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type featuredReq struct {
	Featured bool `json:"featured"`
}

func actor(c echo.Context) service.Actor {
	s := session.From(c)
	return service.Actor{ID: s.UserID, Admin: s.IsAdmin()}
}

// Overview returns platform totals.
func (h *AdminHandler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	users, err := h.Profiles.Count(ctx)
	if err != nil {
		return err
	}
	total, active, err := h.Properties.Counts(ctx)
	if err != nil {
		return err
	}
	credits, err := h.Profiles.TotalCredits(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total_users":       users,
		"total_properties":  total,
		"active_properties": active,
		"total_credits":     credits,
	})
}

func (h *AdminHandler) Users(c echo.Context) error {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", maxPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = maxPageSize
	}
	items, err := h.Profiles.List(c.Request().Context(), size, (page-1)*size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page, "page_size": size})
}

// ContactMessages lists contact form submissions newest first.
func (h *AdminHandler) ContactMessages(c echo.Context) error {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", maxPageSize)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = maxPageSize
	}
	items, err := h.Contacts.List(c.Request().Context(), size, (page-1)*size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page, "page_size": size})
}

// SetRole changes a user's role on the profile, the role source of truth,
// then refreshes the provider's cached claim.
func (h *AdminHandler) SetRole(c echo.Context) error {
	var req roleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, _ := model.ParseRole(req.Role)
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.Profiles.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	if h.Roles != nil {
		if err := h.Roles.SyncRole(ctx, id, string(role)); err != nil {
			slog.Warn("role claim sync failed", "user_id", id, "err", err)
		}
	}
	slog.Info("role changed", "user_id", id, "role", role, "by", session.From(c).UserID)
	p, err := h.Profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// AdjustCredits adds a signed amount to a user's balance.
func (h *AdminHandler) AdjustCredits(c echo.Context) error {
	var req creditReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	entry, balance, err := h.Ledger.AdjustByAdmin(c.Request().Context(), actor(c), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"transaction": entry, "credits": balance})
}

func (h *AdminHandler) Transactions(c echo.Context) error {
	txs, err := h.Ledger.History(c.Request().Context(), c.Param("id"), queryInt(c, "limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": txs})
}

func (h *AdminHandler) Reconcile(c echo.Context) error {
	r, err := h.Ledger.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteProperty removes any listing; the refund goes to its owner.
func (h *AdminHandler) DeleteProperty(c echo.Context) error {
	if err := h.Ledger.DeleteListing(c.Request().Context(), actor(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) SetFeatured(c echo.Context) error {
	var req featuredReq
	if err := c.Bind(&req); err != nil {
		return service.NewValidationError("body", "invalid request body")
	}
	if err := h.Properties.SetFeatured(c.Request().Context(), c.Param("id"), req.Featured); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "featured": req.Featured})
}
