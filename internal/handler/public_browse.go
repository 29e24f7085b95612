package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/session"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
	featuredLimit   = 6
)

// PublicHandler serves the pages visitors can see without signing in.
// Only active listings are ever returned.
type PublicHandler struct {
	Properties *repository.PropertyRepo
	Profiles   *repository.ProfileRepo
	Inquiries  *repository.InquiryRepo
	Contacts   *repository.ContactRepo
}

// AgentContact is the public part of a listing owner's profile.
type AgentContact struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

type inquiryReq struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=64"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

type contactReq struct {
	FirstName string `json:"first_name" validate:"required,max=128"`
	LastName  string `json:"last_name" validate:"required,max=128"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=64"`
	Company   string `json:"company" validate:"omitempty,max=255"`
	Message   string `json:"message" validate:"required,max=5000"`
}

// Landing returns the featured listings.
func (h *PublicHandler) Landing(c echo.Context) error {
	featured, err := h.Properties.ListFeatured(c.Request().Context(), featuredLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"featured": featured})
}

// Browse handles GET /properties with filters and pagination.
func (h *PublicHandler) Browse(c echo.Context) error {
	q := repository.PropertySearchQuery{
		PropertyType: strings.TrimSpace(c.QueryParam("type")),
		ListingType:  strings.TrimSpace(c.QueryParam("listing_type")),
		City:         strings.TrimSpace(c.QueryParam("city")),
		Text:         strings.TrimSpace(c.QueryParam("q")),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", defaultPageSize),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}

	ctx := c.Request().Context()
	items, total, err := h.Properties.SearchActive(ctx, q)
	if err != nil {
		return err
	}
	cities, err := h.Properties.ActiveCities(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
		"cities":    cities,
	})
}

// Detail returns an active listing with its agent contact and counts the
// view.
func (h *PublicHandler) Detail(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.Properties.GetActive(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.Properties.IncrementViews(ctx, p.ID); err != nil {
		slog.Warn("increment views failed", "property_id", p.ID, "err", err)
	} else {
		p.Views++
	}

	resp := echo.Map{"property": p}
	owner, err := h.Profiles.GetByID(ctx, p.UserID)
	switch {
	case err == nil:
		resp["agent"] = AgentContact{Name: owner.FullName, Email: owner.Email, Phone: owner.Phone, Company: owner.Company}
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Inquire stores a visitor's message about an active listing.
func (h *PublicHandler) Inquire(c echo.Context) error {
	var req inquiryReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.Properties.GetActive(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	in := &model.Inquiry{
		ID:         uuid.NewString(),
		PropertyID: p.ID,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      optional(req.Phone),
		Message:    optional(req.Message),
	}
	if s := session.From(c); s.Authenticated() {
		in.UserID = &s.UserID
	}
	if err := h.Inquiries.Create(ctx, in); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, in)
}

// Contact stores a message from the contact form.
func (h *PublicHandler) Contact(c echo.Context) error {
	var req contactReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	m := &model.ContactMessage{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     optional(req.Phone),
		Company:   optional(req.Company),
		Message:   strings.TrimSpace(req.Message),
	}
	m.Name = m.FirstName + " " + m.LastName
	if err := h.Contacts.Create(c.Request().Context(), m); err != nil {
		return err
	}
	slog.Info("contact message received", "id", m.ID)
	return c.JSON(http.StatusCreated, echo.Map{"message": "thanks, we will be in touch", "id": m.ID})
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
