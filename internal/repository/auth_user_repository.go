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

// AuthUserRepo stores credentials for the local identity provider.
type AuthUserRepo struct{ db *sqlx.DB }

func NewAuthUserRepo(db *sqlx.DB) *AuthUserRepo { return &AuthUserRepo{db: db} }

// Create inserts u.  The email is normalised before storing.
func (r *AuthUserRepo) Create(ctx context.Context, u *model.AuthUser) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"INSERT INTO auth_users (id, email, password_hash, role_claim, full_name, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		u.ID, u.Email, u.PasswordHash, u.RoleClaim, u.FullName, u.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

// GetByEmail fetches a user by normalised email.
func (r *AuthUserRepo) GetByEmail(ctx context.Context, email string) (*model.AuthUser, error) {
	return r.getOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *AuthUserRepo) GetByID(ctx context.Context, id string) (*model.AuthUser, error) {
	return r.getOne(ctx, "id", id)
}

func (r *AuthUserRepo) getOne(ctx context.Context, col, val string) (*model.AuthUser, error) {
	var u model.AuthUser
	err := r.db.GetContext(ctx, &u, r.db.Rebind(
		"SELECT id, email, password_hash, role_claim, full_name, created_at FROM auth_users WHERE "+col+" = ?"), val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash.
func (r *AuthUserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE auth_users SET password_hash = ? WHERE id = ?"), hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRoleClaim keeps the token claim in step after an admin role change.
func (r *AuthUserRepo) UpdateRoleClaim(ctx context.Context, id, role string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE auth_users SET role_claim = ? WHERE id = ?"), role, id)
	return err
}
