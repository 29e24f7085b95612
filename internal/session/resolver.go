package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/metrics"
	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
)

// Verifier checks an access token with the identity provider.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (identity.Identity, error)
}

// ProfileSource loads the profile that holds a user's role.
type ProfileSource interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

// Resolver turns an access token into a Session.  It fails closed: any
// provider or store error yields an anonymous session.
type Resolver struct {
	verifier Verifier
	profiles ProfileSource
}

func NewResolver(v Verifier, profiles ProfileSource) *Resolver {
	return &Resolver{verifier: v, profiles: profiles}
}

// Resolve verifies token on every call; nothing is cached between requests.
func (r *Resolver) Resolve(ctx context.Context, token string) Session {
	s := r.resolve(ctx, token)
	metrics.SessionResolutions.WithLabelValues(s.State.String()).Inc()
	return s
}

func (r *Resolver) resolve(ctx context.Context, token string) Session {
	if token == "" {
		return Session{}
	}
	id, err := r.verifier.Verify(ctx, token)
	if err != nil || id.UserID == "" {
		if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
			slog.Warn("session: token verification failed", "err", err)
		}
		return Session{}
	}

	s := Session{State: AuthenticatedUser, UserID: id.UserID, Email: id.Email, Token: token}

	p, err := r.profiles.GetByID(ctx, id.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// no profile row: standard user whatever the claim says
		s.Role = model.SignupRole(id.RoleClaim)
		if id.RoleClaim == string(model.RoleAdmin) {
			slog.Warn("session: admin claim without profile ignored", "user_id", id.UserID)
		}
		return s
	case err != nil:
		slog.Warn("session: profile lookup failed", "user_id", id.UserID, "err", err)
		return Session{}
	}

	s.Role = p.Role
	if p.Email != "" {
		s.Email = p.Email
	}
	if id.RoleClaim != "" && id.RoleClaim != string(p.Role) {
		slog.Warn("session: role claim differs from profile",
			"user_id", id.UserID, "claim", id.RoleClaim, "profile_role", p.Role)
	}
	if p.Role.IsAdmin() {
		s.State = AuthenticatedAdmin
	}
	return s
}
