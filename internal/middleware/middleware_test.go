package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-marketplace/internal/config"
	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/session"
)

// withSession attaches a fixed session, standing in for the resolver.
func withSession(s session.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.Attach(c, s)
			return next(c)
		}
	}
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func gatedServer(s session.Session) *echo.Echo {
	e := echo.New()
	e.Use(withSession(s))
	e.GET("/dashboard", ok, RequireUser())
	e.GET("/dashboard/properties", ok, RequireUser())
	e.GET("/admin", ok, RequireAdmin())
	e.GET("/admin/users", ok, RequireAdmin())
	e.GET("/properties/create", ok, RequireAuthenticated())
	return e
}

func TestGateRedirects(t *testing.T) {
	anon := session.Session{}
	user := session.Session{State: session.AuthenticatedUser, UserID: "u1", Role: model.RoleAgent}
	admin := session.Session{State: session.AuthenticatedAdmin, UserID: "a1", Role: model.RoleAdmin}

	cases := []struct {
		name     string
		s        session.Session
		target   string
		status   int
		location string
	}{
		{"anonymous dashboard", anon, "/dashboard", http.StatusFound, "/login?redirectTo=" + url.QueryEscape("/dashboard")},
		{"anonymous admin keeps query", anon, "/admin/users?page=2", http.StatusFound, "/login?redirectTo=" + url.QueryEscape("/admin/users?page=2")},
		{"anonymous create", anon, "/properties/create", http.StatusFound, "/login?redirectTo=" + url.QueryEscape("/properties/create")},
		{"user on admin", user, "/admin", http.StatusFound, "/dashboard"},
		{"user on admin subpage", user, "/admin/users", http.StatusFound, "/dashboard"},
		{"admin on dashboard", admin, "/dashboard/properties", http.StatusFound, "/admin"},
		{"user dashboard", user, "/dashboard", http.StatusOK, ""},
		{"admin area", admin, "/admin", http.StatusOK, ""},
		{"user create", user, "/properties/create", http.StatusOK, ""},
		{"admin create", admin, "/properties/create", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(gatedServer(tc.s), http.MethodGet, tc.target)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestLoginRedirectCarriesTarget(t *testing.T) {
	rec := serve(gatedServer(session.Session{}), http.MethodGet, "/dashboard")
	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/dashboard", loc.Query().Get("redirectTo"))
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/dashboard/properties", SafeRedirect("/dashboard/properties", "/dashboard"))
	assert.Equal(t, "/dashboard", SafeRedirect("https://evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", SafeRedirect("//evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", SafeRedirect("/\\evil.example", "/dashboard"))
	assert.Equal(t, "/admin", SafeRedirect("", "/admin"))
}

type fixedVerifier struct{ id identity.Identity }

func (v fixedVerifier) Verify(_ context.Context, tok string) (identity.Identity, error) {
	if tok != "good" {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return v.id, nil
}

type fixedProfiles struct{}

func (fixedProfiles) GetByID(context.Context, string) (*model.Profile, error) {
	return nil, repository.ErrNotFound
}

func TestSessionMiddlewareReadsHeaderAndCookie(t *testing.T) {
	r := session.NewResolver(fixedVerifier{id: identity.Identity{UserID: "u1"}}, fixedProfiles{})
	e := echo.New()
	e.Use(Session(r))
	e.GET("/whoami", func(c echo.Context) error { return c.String(http.StatusOK, session.From(c).State.String()) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "user", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "user", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestInFlightRejectsDuplicateSubmission(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.InFlightConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "inflight"}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e := echo.New()
	e.Use(withSession(session.Session{State: session.AuthenticatedUser, UserID: "u1"}))
	e.POST("/properties", func(c echo.Context) error {
		once.Do(func() { close(started) })
		<-release
		return c.NoContent(http.StatusCreated)
	}, InFlight(cfg, rdb))

	first := make(chan int)
	go func() { first <- serve(e, http.MethodPost, "/properties").Code }()
	<-started

	assert.Equal(t, http.StatusConflict, serve(e, http.MethodPost, "/properties").Code)
	close(release)
	assert.Equal(t, http.StatusCreated, <-first)

	// lock released after completion
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/properties").Code)
}

func TestInFlightScopesGuestsByAddress(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.InFlightConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "inflight"}
	e := echo.New()
	e.Use(withSession(session.Session{}))
	e.POST("/contact", ok, InFlight(cfg, rdb))

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	// a visitor whose earlier submission is still running
	require.NoError(t, mr.Set("inflight:guest:203.0.113.7:POST:/contact", "held"))

	assert.Equal(t, http.StatusConflict, post("203.0.113.7"))
	assert.Equal(t, http.StatusOK, post("198.51.100.2"), "other visitors are not blocked")
	assert.True(t, mr.Exists("inflight:guest:203.0.113.7:POST:/contact"))
	assert.False(t, mr.Exists("inflight:guest:198.51.100.2:POST:/contact"), "lock released after completion")
}

func TestInFlightDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/x", ok, InFlight(config.InFlightConfig{Enabled: true}, nil))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x").Code)
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/", ok)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/").Code)
	rec := serve(e, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRedisCacheServesAnonymousOnly(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, KeyStrategy: "path_query", Prefix: "cache", MaxBodyBytes: 1 << 20}

	calls := 0
	handler := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}

	anon := echo.New()
	anon.Use(withSession(session.Session{}), NewRedisCache(cfg, rdb))
	anon.GET("/properties", handler)

	rec := serve(anon, http.MethodGet, "/properties?city=Cebu")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = serve(anon, http.MethodGet, "/properties?city=Cebu")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
	assert.Equal(t, 1, calls)

	serve(anon, http.MethodGet, "/properties?city=Manila")
	assert.Equal(t, 2, calls)

	user := echo.New()
	user.Use(withSession(session.Session{State: session.AuthenticatedUser, UserID: "u1"}), NewRedisCache(cfg, rdb))
	user.GET("/properties", handler)
	rec = serve(user, http.MethodGet, "/properties?city=Cebu")
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}
