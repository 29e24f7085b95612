package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

type InquiryRepo struct{ db *sqlx.DB }

func NewInquiryRepo(db *sqlx.DB) *InquiryRepo { return &InquiryRepo{db: db} }

// Create stores a new inquiry with status "new".
func (r *InquiryRepo) Create(ctx context.Context, in *model.Inquiry) error {
	in.CreatedAt = time.Now().UTC()
	if in.Status == "" {
		in.Status = "new"
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO inquiries
		(id, property_id, user_id, name, email, phone, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		in.ID, in.PropertyID, in.UserID, in.Name, in.Email, in.Phone, in.Message, in.Status, in.CreatedAt)
	return err
}

// ListByProperty returns a listing's inquiries newest first.
func (r *InquiryRepo) ListByProperty(ctx context.Context, propertyID string) ([]model.Inquiry, error) {
	out := []model.Inquiry{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, property_id, user_id, name, email, phone, message, status, created_at
		FROM inquiries WHERE property_id = ? ORDER BY created_at DESC`), propertyID)
	return out, err
}
