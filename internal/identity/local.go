package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/utils"
)

const resetTTL = time.Hour

// LocalConfig configures the built-in provider.
type LocalConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Local stores bcrypt credentials in auth_users, issues HS256 access tokens
// and rotates opaque refresh tokens stored as SHA-256 hashes.
type Local struct {
	cfg    LocalConfig
	users  *repository.AuthUserRepo
	tokens *repository.TokenRepo
}

func NewLocal(cfg LocalConfig, users *repository.AuthUserRepo, tokens *repository.TokenRepo) *Local {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Local{cfg: cfg, users: users, tokens: tokens}
}

func (p *Local) Name() string { return "local" }

func (p *Local) SignUp(ctx context.Context, in SignUpInput) (Identity, error) {
	hash, err := utils.HashPassword(in.Password, p.cfg.BcryptCost)
	if err != nil {
		return Identity{}, err
	}
	u := &model.AuthUser{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		RoleClaim:    string(model.SignupRole(in.Role)),
		FullName:     strings.TrimSpace(in.FullName),
	}
	if err := p.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, err
	}
	return Identity{UserID: u.ID, Email: u.Email, FullName: u.FullName, RoleClaim: u.RoleClaim}, nil
}

func (p *Local) SignIn(ctx context.Context, email, password string) (Identity, Tokens, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Identity{}, Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, Tokens{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Identity{}, Tokens{}, ErrInvalidCredentials
	}
	toks, err := p.issue(ctx, u)
	if err != nil {
		return Identity{}, Tokens{}, err
	}
	return Identity{UserID: u.ID, Email: u.Email, FullName: u.FullName, RoleClaim: u.RoleClaim}, toks, nil
}

// SignOut revokes the refresh token.  Access tokens simply expire.
func (p *Local) SignOut(ctx context.Context, _ string, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return p.tokens.RevokeByHash(ctx, utils.HashToken(refreshToken))
}

// Refresh consumes refreshToken and issues a new pair.
func (p *Local) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	userID, err := p.tokens.Consume(ctx, utils.HashToken(refreshToken), repository.PurposeRefresh)
	if errors.Is(err, repository.ErrNotFound) {
		return Tokens{}, ErrInvalidToken
	}
	if err != nil {
		return Tokens{}, err
	}
	u, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Tokens{}, ErrInvalidToken
	}
	if err != nil {
		return Tokens{}, err
	}
	return p.issue(ctx, u)
}

// ResetPassword issues a one-hour reset token.  There is no mail transport;
// the token is logged for operators.  Unknown emails succeed silently.
func (p *Local) ResetPassword(ctx context.Context, email string) error {
	u, err := p.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := utils.NewOpaqueToken(resetTTL)
	if err != nil {
		return err
	}
	if err := p.tokens.Store(ctx, u.ID, utils.HashToken(tok.Raw), repository.PurposeReset, tok.Exp); err != nil {
		return err
	}
	slog.Info("password reset requested", "user_id", u.ID, "reset_token", tok.Raw, "expires_at", tok.Exp)
	return nil
}

// ConfirmReset sets a new password and revokes all sessions of the user.
func (p *Local) ConfirmReset(ctx context.Context, resetToken, newPassword string) error {
	hash, err := utils.HashPassword(newPassword, p.cfg.BcryptCost)
	if err != nil {
		return err
	}
	userID, err := p.tokens.Consume(ctx, utils.HashToken(resetToken), repository.PurposeReset)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if err := p.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return p.tokens.RevokeAllForUser(ctx, userID)
}

func (p *Local) Verify(_ context.Context, accessToken string) (Identity, error) {
	claims, err := utils.ParseAccessToken(p.cfg.Secret, accessToken)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, RoleClaim: claims.Role}, nil
}

func (p *Local) SyncRole(ctx context.Context, userID, role string) error {
	return p.users.UpdateRoleClaim(ctx, userID, role)
}

func (p *Local) issue(ctx context.Context, u *model.AuthUser) (Tokens, error) {
	at, err := utils.NewAccessToken(p.cfg.Secret, u.ID, u.Email, u.RoleClaim, p.cfg.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	rt, err := utils.NewOpaqueToken(p.cfg.RefreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	if err := p.tokens.Store(ctx, u.ID, utils.HashToken(rt.Raw), repository.PurposeRefresh, rt.Exp); err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: at.Token, RefreshToken: rt.Raw, ExpiresAt: at.Exp}, nil
}
