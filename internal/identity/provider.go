// Package identity abstracts the identity provider that owns credentials
// and issues access tokens.  The service never trusts a token it did not
// verify through the provider on the same request.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnsupported        = errors.New("operation not supported by provider")
)

// Identity is what a provider knows about a user.  RoleClaim is a cached
// copy of the role and must not be used for authorisation on its own.
type Identity struct {
	UserID    string
	Email     string
	FullName  string
	RoleClaim string
}

// Tokens is a freshly issued session.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// Provider is the identity provider contract.
type Provider interface {
	Name() string
	SignUp(ctx context.Context, in SignUpInput) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, Tokens, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	ResetPassword(ctx context.Context, email string) error
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// PasswordResetter is implemented by providers that complete password
// resets themselves instead of through an emailed link.
type PasswordResetter interface {
	ConfirmReset(ctx context.Context, resetToken, newPassword string) error
}

// RoleSyncer is implemented by providers that cache the role claim locally
// and can update it after an admin changes a role.
type RoleSyncer interface {
	SyncRole(ctx context.Context, userID, role string) error
}
