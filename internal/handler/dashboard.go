package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/session"
	"github.com/iliyamo/property-marketplace/internal/storage"
)

const recentLimit = 5

// ImageUploader stores a listing image and returns its public URL.
type ImageUploader interface {
	Put(ctx context.Context, propertyID string, r io.Reader, size int64, contentType string) (string, error)
}

// DashboardHandler serves the standard user area.  Every handler acts on
// the caller's own data only.
type DashboardHandler struct {
	Profiles      *repository.ProfileRepo
	Properties    *repository.PropertyRepo
	Inquiries     *repository.InquiryRepo
	Ledger        *service.Ledger
	Images        ImageUploader // nil when storage is disabled
	MaxImageBytes int64
}

type profileReq struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=64"`
	Company   *string `json:"company" validate:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=1024"`
}

// Overview returns the dashboard stats and recent activity.
func (h *DashboardHandler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	uid := session.From(c).UserID

	stats, err := h.Properties.OwnerStats(ctx, uid)
	if err != nil {
		return err
	}
	credits, err := h.Ledger.GetBalance(ctx, uid)
	if err != nil {
		return err
	}
	txs, err := h.Ledger.History(ctx, uid, recentLimit)
	if err != nil {
		return err
	}
	listings, err := h.Properties.ListByOwner(ctx, uid, recentLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stats": echo.Map{
			"total_properties":  stats.Total,
			"active_properties": stats.Active,
			"total_views":       stats.Views,
			"credits":           credits,
		},
		"recent_transactions": txs,
		"recent_properties":   listings,
	})
}

// MyProperties lists the caller's listings in every status.
func (h *DashboardHandler) MyProperties(c echo.Context) error {
	items, err := h.Properties.ListByOwner(c.Request().Context(), session.From(c).UserID, 500)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// UpdateProperty edits an owned listing.  Edits cost no credits.
func (h *DashboardHandler) UpdateProperty(c echo.Context) error {
	var in model.PropertyInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.ownedProperty(c)
	if err != nil {
		return err
	}
	in.Apply(p)
	if err := h.Properties.Update(ctx, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// DeleteProperty deletes an owned listing and refunds its credit.
func (h *DashboardHandler) DeleteProperty(c echo.Context) error {
	s := session.From(c)
	if err := h.Ledger.DeleteListing(c.Request().Context(), service.Actor{ID: s.UserID, Admin: s.IsAdmin()}, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage accepts a multipart "image" file and appends its URL to the
// listing.
func (h *DashboardHandler) UploadImage(c echo.Context) error {
	if h.Images == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "image storage is disabled")
	}
	p, err := h.ownedProperty(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return service.NewValidationError("image", "required")
	}
	if h.MaxImageBytes > 0 && fh.Size > h.MaxImageBytes {
		return service.NewValidationError("image", "file too large")
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if _, ok := storage.AllowedContentTypes[ct]; !ok {
		return service.NewValidationError("image", "unsupported content type")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := c.Request().Context()
	url, err := h.Images.Put(ctx, p.ID, f, fh.Size, ct)
	if err != nil {
		return err
	}
	images, err := h.Properties.AppendImage(ctx, p.ID, p.UserID, url)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url, "images": images})
}

// PropertyInquiries lists inquiries on an owned listing.
func (h *DashboardHandler) PropertyInquiries(c echo.Context) error {
	p, err := h.ownedProperty(c)
	if err != nil {
		return err
	}
	items, err := h.Inquiries.ListByProperty(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *DashboardHandler) Profile(c echo.Context) error {
	p, err := h.Profiles.GetByID(c.Request().Context(), session.From(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProfile changes the self-service fields.  Role and credits are not
// accepted here.
func (h *DashboardHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.Profiles.UpdateSelf(c.Request().Context(), session.From(c).UserID, model.ProfileUpdate{
		FullName:  req.FullName,
		Phone:     req.Phone,
		Company:   req.Company,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Credits returns the balance and the latest transactions.
func (h *DashboardHandler) Credits(c echo.Context) error {
	ctx := c.Request().Context()
	uid := session.From(c).UserID
	balance, err := h.Ledger.GetBalance(ctx, uid)
	if err != nil {
		return err
	}
	txs, err := h.Ledger.History(ctx, uid, queryInt(c, "limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": balance, "transactions": txs})
}

// ownedProperty loads the :id listing and checks the caller owns it.
func (h *DashboardHandler) ownedProperty(c echo.Context) (*model.Property, error) {
	p, err := h.Properties.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if p.UserID != session.From(c).UserID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}
