package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

// Token purposes stored in refresh_tokens.purpose.
const (
	PurposeRefresh = "refresh"
	PurposeReset   = "reset"
)

// TokenRepo persists and validates hashed one-time tokens.
type TokenRepo struct{ db *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

// Store inserts a token hash row.
func (r *TokenRepo) Store(ctx context.Context, userID, tokenHash, purpose string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"INSERT INTO refresh_tokens (id, user_id, token_hash, purpose, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		uuid.NewString(), userID, tokenHash, purpose, exp.UTC(), time.Now().UTC())
	return err
}

// Consume validates a token and revokes it.  The revoke only matches an
// unrevoked row, so a token is usable once even under concurrent requests.
// It returns the owning user id or ErrNotFound.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash, purpose string) (string, error) {
	var t model.RefreshToken
	err := r.db.GetContext(ctx, &t, r.db.Rebind(
		"SELECT id, user_id, token_hash, purpose, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash = ? AND purpose = ?"),
		tokenHash, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return "", ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL"), time.Now().UTC(), t.ID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return t.UserID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL"),
		time.Now().UTC(), tokenHash)
	return err
}

// RevokeAllForUser revokes every active token of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL"),
		time.Now().UTC(), userID)
	return err
}
