package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

const profileColumns = "id, email, full_name, phone, company, avatar_url, role, credits, created_at, updated_at"

// ProfileRepo provides access to the `profiles` table.  It is the only
// writer of profiles.credits and every balance change goes through
// AdjustCreditsTx.
type ProfileRepo struct{ db *sqlx.DB }

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// DB exposes the pool so callers can open transactions spanning repositories.
func (r *ProfileRepo) DB() *sqlx.DB { return r.db }

// Create inserts a profile.  ID, email and role must be set by the caller.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO profiles (id, email, full_name, phone, company, avatar_url, role, credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Email, p.FullName, p.Phone, p.Company, p.AvatarURL, p.Role, p.Credits, p.CreatedAt, p.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

// GetByID returns ErrNotFound when the profile does not exist.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.GetContext(ctx, &p, r.db.Rebind("SELECT "+profileColumns+" FROM profiles WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns profiles newest first.
func (r *ProfileRepo) List(ctx context.Context, limit, offset int) ([]model.Profile, error) {
	out := []model.Profile{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+profileColumns+" FROM profiles ORDER BY created_at DESC, id LIMIT ? OFFSET ?"), limit, offset)
	return out, err
}

// UpdateSelf applies the self-service fields and returns the updated row.
func (r *ProfileRepo) UpdateSelf(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	sets := []string{}
	args := []any{}
	if u.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, strings.TrimSpace(*u.FullName))
	}
	if u.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, u.Phone)
	}
	if u.Company != nil {
		sets = append(sets, "company = ?")
		args = append(args, u.Company)
	}
	if u.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, u.AvatarURL)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC(), id)
		res, err := r.db.ExecContext(ctx, r.db.Rebind(
			"UPDATE profiles SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(ctx, id)
}

// UpdateRole changes a profile's role.
func (r *ProfileRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?"), role, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Balance returns the current credit balance or ErrNotFound.
func (r *ProfileRepo) Balance(ctx context.Context, id string) (int, error) {
	var credits int
	err := r.db.GetContext(ctx, &credits, r.db.Rebind("SELECT credits FROM profiles WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return credits, err
}

// BalanceTx reads the balance inside tx.
func (r *ProfileRepo) BalanceTx(ctx context.Context, tx sqlx.ExtContext, id string) (int, error) {
	var credits int
	err := sqlx.GetContext(ctx, tx, &credits, tx.Rebind("SELECT credits FROM profiles WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return credits, err
}

// AdjustCreditsTx applies delta to the balance in a single conditional
// update that never lets the balance drop below zero.  It reports false when
// no row matched, either because the profile is missing or because the
// balance is too low; BalanceTx tells the two apart.
func (r *ProfileRepo) AdjustCreditsTx(ctx context.Context, tx sqlx.ExtContext, id string, delta int) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		"UPDATE profiles SET credits = credits + ?, updated_at = ? WHERE id = ? AND credits + ? >= 0"),
		delta, time.Now().UTC(), id, delta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Count returns the number of profiles.
func (r *ProfileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM profiles")
	return n, err
}

// TotalCredits sums every outstanding balance.
func (r *ProfileRepo) TotalCredits(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COALESCE(SUM(credits), 0) FROM profiles")
	return n, err
}
