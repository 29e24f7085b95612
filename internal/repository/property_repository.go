package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

const propertyColumns = `id, user_id, title, description, property_type, listing_type, price_cents,
	location, city, province, bedrooms, bathrooms, floor_area, lot_area, images, features,
	status, featured, views, created_at, updated_at`

// PropertyRepo provides access to the `properties` table.  Creation and
// deletion only happen inside ledger transactions (CreateTx, DeleteTx).
type PropertyRepo struct{ db *sqlx.DB }

func NewPropertyRepo(db *sqlx.DB) *PropertyRepo { return &PropertyRepo{db: db} }

// CreateTx inserts p inside tx.  ID and UserID must be set.
func (r *PropertyRepo) CreateTx(ctx context.Context, tx sqlx.ExtContext, p *model.Property) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = model.StatusActive
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO properties (`+propertyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.UserID, p.Title, p.Description, p.PropertyType, p.ListingType, p.PriceCents,
		p.Location, p.City, p.Province, p.Bedrooms, p.Bathrooms, p.FloorArea, p.LotArea,
		p.Images, p.Features, p.Status, p.Featured, p.Views, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetByID returns a listing regardless of status.
func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*model.Property, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx is GetByID inside tx.
func (r *PropertyRepo) GetByIDTx(ctx context.Context, tx sqlx.ExtContext, id string) (*model.Property, error) {
	var p model.Property
	err := sqlx.GetContext(ctx, tx, &p, tx.Rebind("SELECT "+propertyColumns+" FROM properties WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActive returns a listing only while it is publicly visible.
func (r *PropertyRepo) GetActive(ctx context.Context, id string) (*model.Property, error) {
	var p model.Property
	err := r.db.GetContext(ctx, &p, r.db.Rebind(
		"SELECT "+propertyColumns+" FROM properties WHERE id = ? AND status = ?"), id, model.StatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update writes the owner-editable fields of p.  The WHERE clause repeats
// the owner id so a listing can never be edited through another account.
func (r *PropertyRepo) Update(ctx context.Context, p *model.Property) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE properties SET
		title = ?, description = ?, property_type = ?, listing_type = ?, price_cents = ?,
		location = ?, city = ?, province = ?, bedrooms = ?, bathrooms = ?, floor_area = ?, lot_area = ?,
		images = ?, features = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		p.Title, p.Description, p.PropertyType, p.ListingType, p.PriceCents,
		p.Location, p.City, p.Province, p.Bedrooms, p.Bathrooms, p.FloorArea, p.LotArea,
		p.Images, p.Features, p.Status, p.UpdatedAt, p.ID, p.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFeatured toggles the featured flag (admin only).
func (r *PropertyRepo) SetFeatured(ctx context.Context, id string, featured bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE properties SET featured = ?, updated_at = ? WHERE id = ?"), featured, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendImage adds url to the listing's image list.
func (r *PropertyRepo) AppendImage(ctx context.Context, id, ownerID, url string) (model.StringList, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != ownerID {
		return nil, ErrForbidden
	}
	images := append(p.Images, url)
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		"UPDATE properties SET images = ?, updated_at = ? WHERE id = ?"), images, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return images, nil
}

// DeleteTx removes the listing together with its inquiries and returns the
// number of listing rows deleted.
func (r *PropertyRepo) DeleteTx(ctx context.Context, tx sqlx.ExtContext, id string) (int64, error) {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM inquiries WHERE property_id = ?"), id); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM properties WHERE id = ?"), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByOwner returns the owner's listings newest first, any status.
func (r *PropertyRepo) ListByOwner(ctx context.Context, userID string, limit int) ([]model.Property, error) {
	out := []model.Property{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+propertyColumns+" FROM properties WHERE user_id = ? ORDER BY created_at DESC LIMIT ?"), userID, limit)
	return out, err
}

// ListFeatured returns active featured listings for the landing page.
func (r *PropertyRepo) ListFeatured(ctx context.Context, limit int) ([]model.Property, error) {
	out := []model.Property{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+propertyColumns+" FROM properties WHERE status = ? AND featured = ? ORDER BY created_at DESC LIMIT ?"),
		model.StatusActive, true, limit)
	return out, err
}

// IncrementViews bumps the view counter of an active listing atomically.
func (r *PropertyRepo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE properties SET views = views + 1 WHERE id = ? AND status = ?"), id, model.StatusActive)
	return err
}

// OwnerStats aggregates the dashboard numbers for one owner.
type OwnerStats struct {
	Total  int64 `db:"total" json:"total_properties"`
	Active int64 `db:"active" json:"active_properties"`
	Views  int64 `db:"views" json:"total_views"`
}

func (r *PropertyRepo) OwnerStats(ctx context.Context, userID string) (OwnerStats, error) {
	var s OwnerStats
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(views), 0) AS views
		FROM properties WHERE user_id = ?`), model.StatusActive, userID)
	return s, err
}

// Counts returns the total and active number of listings.
func (r *PropertyRepo) Counts(ctx context.Context) (total, active int64, err error) {
	var s struct {
		Total  int64 `db:"total"`
		Active int64 `db:"active"`
	}
	err = r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active FROM properties`), model.StatusActive)
	return s.Total, s.Active, err
}
