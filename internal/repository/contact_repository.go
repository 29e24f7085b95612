package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

type ContactRepo struct{ db *sqlx.DB }

func NewContactRepo(db *sqlx.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage) error {
	m.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO contact_messages
		(id, first_name, last_name, name, email, phone, company, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.FirstName, m.LastName, m.Name, m.Email, m.Phone, m.Company, m.Message, m.CreatedAt)
	return err
}

// List returns contact messages newest first.
func (r *ContactRepo) List(ctx context.Context, limit, offset int) ([]model.ContactMessage, error) {
	out := []model.ContactMessage{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, first_name, last_name, name, email, phone, company, message, created_at
		FROM contact_messages ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), limit, offset)
	return out, err
}
