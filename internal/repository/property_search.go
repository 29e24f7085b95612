package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/property-marketplace/internal/model"
)

// PropertySearchQuery defines filters and pagination for the public browse
// page.  Only active listings are ever returned.
type PropertySearchQuery struct {
	PropertyType string
	ListingType  string
	City         string
	Text         string // matched against title, location and city
	Page         int
	PageSize     int
}

// likeEscaper makes user text match literally inside a LIKE pattern using
// '!' as the escape character, which all three dialects accept.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *PropertyRepo) SearchActive(ctx context.Context, q PropertySearchQuery) ([]model.Property, int64, error) {
	where := []string{"status = ?"}
	args := []any{model.StatusActive}

	if q.PropertyType != "" {
		where = append(where, "property_type = ?")
		args = append(args, q.PropertyType)
	}
	if q.ListingType != "" {
		where = append(where, "listing_type = ?")
		args = append(args, q.ListingType)
	}
	if q.City != "" {
		where = append(where, "city = ?")
		args = append(args, q.City)
	}
	if q.Text != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q.Text)) + "%"
		where = append(where,
			"(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(location) LIKE ? ESCAPE '!' OR LOWER(city) LIKE ? ESCAPE '!')")
		args = append(args, like, like, like)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM properties WHERE "+cond), args...); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 12
	}
	out := []model.Property{}
	dataArgs := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+propertyColumns+" FROM properties WHERE "+cond+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"),
		dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ActiveCities lists the distinct cities with at least one active listing.
func (r *PropertyRepo) ActiveCities(ctx context.Context) ([]string, error) {
	out := []string{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT DISTINCT city FROM properties WHERE status = ? ORDER BY city"), model.StatusActive)
	return out, err
}
