package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/property-marketplace/internal/config"
	"github.com/iliyamo/property-marketplace/internal/session"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// inflightKey scopes the lock to the caller.  Anonymous callers share no
// user id, so their lock is taken per client address.
func inflightKey(cfg config.InFlightConfig, c echo.Context) string {
	caller := userID(c)
	if !session.From(c).Authenticated() {
		caller += ":" + c.RealIP()
	}
	return strings.Join([]string{cfg.Prefix, caller, c.Request().Method, c.Request().URL.Path}, ":")
}

// InFlight rejects a second mutating request from the same user on the
// same route while the first is still running.  Safe methods pass through.
func InFlight(cfg config.InFlightConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			key := inflightKey(cfg, c)
			token := uuid.NewString()
			ctx := c.Request().Context()

			acquired, err := rdb.SetNX(ctx, key, token, cfg.TTL).Result()
			if err != nil {
				slog.Warn("inflight: redis error", "key", key, "err", err)
				return next(c)
			}
			if !acquired {
				return c.JSON(http.StatusConflict, echo.Map{"error": "request already in progress"})
			}
			defer func() {
				if err := releaseScript.Run(context.WithoutCancel(ctx), rdb, []string{key}, token).Err(); err != nil {
					slog.Warn("inflight: release failed", "key", key, "err", err)
				}
			}()
			return next(c)
		}
	}
}
