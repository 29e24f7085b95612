package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// Supabase delegates identity to a hosted GoTrue instance.  The role and
// full name are kept in user metadata at signup.
type Supabase struct {
	client gotrue.Client
}

// extractProjectRef turns https://<ref>.supabase.co into <ref>.
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	return strings.Split(url, ".")[0]
}

// NewSupabase builds a client for the project at url.  URLs outside
// supabase.co are treated as a self-hosted GoTrue endpoint.
func NewSupabase(url, serviceKey string) *Supabase {
	client := gotrue.New(extractProjectRef(url), serviceKey)
	if !strings.Contains(url, ".supabase.co") {
		client = client.WithCustomGoTrueURL(strings.TrimSuffix(url, "/") + "/auth/v1")
	}
	return &Supabase{client: client}
}

func (p *Supabase) Name() string { return "supabase" }

func (p *Supabase) SignUp(_ context.Context, in SignUpInput) (Identity, error) {
	resp, err := p.client.Signup(types.SignupRequest{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
		Data: map[string]interface{}{
			"full_name": in.FullName,
			"role":      in.Role,
		},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already registered") {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, fmt.Errorf("supabase signup: %w", err)
	}
	return Identity{
		UserID:    resp.ID.String(),
		Email:     resp.Email,
		FullName:  in.FullName,
		RoleClaim: in.Role,
	}, nil
}

func (p *Supabase) SignIn(_ context.Context, email, password string) (Identity, Tokens, error) {
	resp, err := p.client.SignInWithEmailPassword(strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil || resp == nil || resp.AccessToken == "" {
		return Identity{}, Tokens{}, ErrInvalidCredentials
	}
	return fromUser(resp.User), tokensFrom(resp.Session), nil
}

func (p *Supabase) SignOut(_ context.Context, accessToken, _ string) error {
	if accessToken == "" {
		return nil
	}
	return p.client.WithToken(accessToken).Logout()
}

func (p *Supabase) Refresh(_ context.Context, refreshToken string) (Tokens, error) {
	resp, err := p.client.RefreshToken(refreshToken)
	if err != nil || resp == nil {
		return Tokens{}, ErrInvalidToken
	}
	return tokensFrom(resp.Session), nil
}

func (p *Supabase) ResetPassword(_ context.Context, email string) error {
	return p.client.Recover(types.RecoverRequest{Email: strings.ToLower(strings.TrimSpace(email))})
}

// Verify asks GoTrue for the user behind accessToken, so revoked sessions
// are rejected immediately.
func (p *Supabase) Verify(_ context.Context, accessToken string) (Identity, error) {
	resp, err := p.client.WithToken(accessToken).GetUser()
	if err != nil {
		if authRejected(err) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("supabase get user: %w", err)
	}
	if resp == nil {
		return Identity{}, ErrInvalidToken
	}
	return fromUser(resp.User), nil
}

var statusPattern = regexp.MustCompile(`response status code (\d{3})`)

// authRejected reports whether GoTrue refused the token itself, as opposed
// to failing to answer.
func authRejected(err error) bool {
	m := statusPattern.FindStringSubmatch(err.Error())
	return m != nil && (m[1] == "401" || m[1] == "403")
}

func fromUser(u types.User) Identity {
	id := Identity{UserID: u.ID.String(), Email: u.Email}
	if v, ok := u.UserMetadata["role"].(string); ok {
		id.RoleClaim = v
	}
	if v, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = v
	}
	return id
}

func tokensFrom(s types.Session) Tokens {
	exp := time.Unix(s.ExpiresAt, 0).UTC()
	if s.ExpiresAt == 0 {
		exp = time.Now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: exp}
}
