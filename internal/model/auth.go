package model

import "time"

// AuthUser is a credential record owned by the local identity provider.
// RoleClaim is copied into access tokens; the profile row stays the
// authority on roles.
type AuthUser struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	RoleClaim    string    `db:"role_claim"`
	FullName     string    `db:"full_name"`
	CreatedAt    time.Time `db:"created_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 of the token is stored.  Purpose distinguishes session refresh
// tokens from password reset tokens.
type RefreshToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	Purpose   string     `db:"purpose"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
