package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/middleware"
	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/session"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Provider     identity.Provider
	Profiles     *repository.ProfileRepo
	CookieSecure bool
}

func NewAuthHandler(p identity.Provider, profiles *repository.ProfileRepo, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Provider: p, Profiles: profiles, CookieSecure: cookieSecure}
}

type signupReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=agent developer"`
	Phone    string `json:"phone" validate:"omitempty,max=64"`
	Company  string `json:"company" validate:"omitempty,max=255"`
}

type loginReq struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RedirectTo string `json:"redirect_to"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginResp struct {
	identity.Tokens
	User       *model.Profile `json:"user,omitempty"`
	RedirectTo string         `json:"redirect_to"`
}

// Signup registers the user with the identity provider and creates the
// profile holding the initial credit allowance.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	role := model.SignupRole(req.Role)
	id, err := h.Provider.SignUp(ctx, identity.SignUpInput{
		Email: req.Email, Password: req.Password, FullName: req.FullName, Role: string(role),
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		// an earlier signup may have stopped after the provider account
		// was created but before its profile was written
		return h.resumeSignup(c, ctx, req, err)
	}
	if err != nil {
		return err
	}

	p := &model.Profile{
		ID:       id.UserID,
		Email:    id.Email,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    optional(req.Phone),
		Company:  optional(req.Company),
		Role:     role,
		Credits:  model.InitialCredits,
	}
	if err := h.Profiles.Create(ctx, p); err != nil {
		slog.Error("signup: profile creation failed", "user_id", id.UserID, "err", err)
		return err
	}
	slog.Info("user signed up", "user_id", p.ID, "role", p.Role, "provider", h.Provider.Name())
	return c.JSON(http.StatusCreated, echo.Map{"user": p})
}

// Login signs the user in, sets the session cookie and returns the post
// login destination.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, toks, err := h.Provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	profile, err := h.ensureProfile(ctx, id, nil)
	if err != nil {
		return err
	}
	home := middleware.DashboardPath
	if profile.Role.IsAdmin() {
		home = middleware.AdminPath
	}

	h.setSessionCookie(c, toks.AccessToken, toks.ExpiresAt)
	return c.JSON(http.StatusOK, loginResp{
		Tokens:     toks,
		User:       profile,
		RedirectTo: middleware.SafeRedirect(req.RedirectTo, home),
	})
}

// resumeSignup finishes a signup whose provider account already exists.
// It only succeeds when the password matches and the profile is missing;
// otherwise the caller gets the original conflict.
func (h *AuthHandler) resumeSignup(c echo.Context, ctx context.Context, req signupReq, taken error) error {
	id, _, err := h.Provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return taken
	}
	if _, err := h.Profiles.GetByID(ctx, id.UserID); err == nil {
		return taken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	p, err := h.ensureProfile(ctx, id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": p})
}

// ensureProfile returns the profile of id, creating it with the initial
// credit grant when the provider account has none.  Signup details are
// used when present, the provider's identity otherwise.
func (h *AuthHandler) ensureProfile(ctx context.Context, id identity.Identity, req *signupReq) (*model.Profile, error) {
	p, err := h.Profiles.GetByID(ctx, id.UserID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	p = &model.Profile{
		ID:       id.UserID,
		Email:    id.Email,
		FullName: strings.TrimSpace(id.FullName),
		Role:     model.SignupRole(id.RoleClaim),
		Credits:  model.InitialCredits,
	}
	if req != nil {
		p.FullName = strings.TrimSpace(req.FullName)
		p.Phone = optional(req.Phone)
		p.Company = optional(req.Company)
		p.Role = model.SignupRole(req.Role)
	}
	if err := h.Profiles.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// created concurrently
			return h.Profiles.GetByID(ctx, id.UserID)
		}
		return nil, err
	}
	slog.Info("missing profile created", "user_id", p.ID, "role", p.Role)
	return p, nil
}

// Logout ends the provider session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)
	if err := h.Provider.SignOut(c.Request().Context(), middleware.AccessToken(c), req.RefreshToken); err != nil {
		slog.Warn("logout: provider sign out failed", "err", err)
	}
	h.setSessionCookie(c, "", time.Unix(0, 0))
	return c.JSON(http.StatusOK, echo.Map{"redirect_to": "/"})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	toks, err := h.Provider.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, toks.AccessToken, toks.ExpiresAt)
	return c.JSON(http.StatusOK, toks)
}

// ForgotPassword always answers 202 so emails cannot be enumerated.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.Provider.ResetPassword(c.Request().Context(), req.Email); err != nil {
		slog.Warn("password reset failed", "err", err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the email is registered, reset instructions were sent"})
}

// ResetPassword completes a reset for providers that handle it in-app.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, ok := h.Provider.(identity.PasswordResetter)
	if !ok {
		return identity.ErrUnsupported
	}
	if err := r.ConfirmReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Session describes the caller as resolved for this request.
func (h *AuthHandler) Session(c echo.Context) error {
	s := session.From(c)
	resp := echo.Map{"state": s.State.String()}
	if s.Authenticated() {
		resp["user_id"] = s.UserID
		resp["email"] = s.Email
		resp["role"] = s.Role
		resp["home"] = middleware.HomeFor(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// LoginPage returns the login view model.  Signed-in users are sent home.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	s := session.From(c)
	if s.Authenticated() {
		return c.Redirect(http.StatusFound, middleware.SafeRedirect(c.QueryParam("redirectTo"), middleware.HomeFor(s)))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"page":        "login",
		"redirect_to": middleware.SafeRedirect(c.QueryParam("redirectTo"), ""),
	})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, exp time.Time) {
	ck := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		ck.MaxAge = -1
	}
	c.SetCookie(ck)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
