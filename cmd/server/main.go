package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/property-marketplace/internal/config"
	"github.com/iliyamo/property-marketplace/internal/database"
	"github.com/iliyamo/property-marketplace/internal/handler"
	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/metrics"
	"github.com/iliyamo/property-marketplace/internal/middleware"
	"github.com/iliyamo/property-marketplace/internal/queue"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/router"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/session"
	"github.com/iliyamo/property-marketplace/internal/storage"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel))

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver, URL: cfg.DBURL, User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		slog.Error("database connection failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Migrate || cfg.DBDriver == database.SQLite {
		if err := database.Migrate(ctx, db); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	profiles := repository.NewProfileRepo(db)
	properties := repository.NewPropertyRepo(db)
	txs := repository.NewTransactionRepo(db)
	inquiries := repository.NewInquiryRepo(db)
	contacts := repository.NewContactRepo(db)

	var provider identity.Provider
	switch cfg.AuthProvider {
	case "supabase":
		provider = identity.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey)
	default:
		provider = identity.NewLocal(identity.LocalConfig{
			Secret:     cfg.JWTSecret,
			AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
			BcryptCost: cfg.BcryptCost,
		}, repository.NewAuthUserRepo(db), repository.NewTokenRepo(db))
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		events = service.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
		if cfg.Events.Consume {
			consumer := &queue.Consumer{URL: cfg.Events.URL, Queue: cfg.Events.Queue, LogDir: cfg.Events.LogDir}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("ledger consumer stopped", "err", err)
				}
			}()
		}
	}
	ledger := service.NewLedger(db, profiles, properties, txs, events)

	dashboard := &handler.DashboardHandler{
		Profiles: profiles, Properties: properties, Inquiries: inquiries, Ledger: ledger,
		MaxImageBytes: cfg.Storage.MaxBytes,
	}
	if cfg.Storage.Enabled {
		images, err := storage.NewImageStore(cfg.Storage)
		if err != nil {
			slog.Error("image storage setup failed", "err", err)
			os.Exit(1)
		}
		if err := images.EnsureBucket(ctx); err != nil {
			slog.Warn("image bucket check failed", "err", err)
		}
		dashboard.Images = images
	}

	admin := &handler.AdminHandler{Profiles: profiles, Properties: properties, Ledger: ledger, Contacts: contacts}
	if rs, ok := provider.(identity.RoleSyncer); ok {
		admin.Roles = rs
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(!cfg.IsProd())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "remote_ip", v.RemoteIP}
			if s := session.From(c); s.Authenticated() {
				attrs = append(attrs, "user_id", s.UserID)
			}
			if v.Error != nil {
				attrs = append(attrs, "err", v.Error.Error())
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(metrics.Middleware())
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))
	e.Use(middleware.Session(session.NewResolver(provider, profiles)))

	cache := middleware.NewRedisCache(cfg.Cache, rdb)
	inflight := middleware.InFlight(cfg.InFlight, rdb)

	router.RegisterRoutes(e, handler.Ready(db, rdb))
	router.RegisterAuth(e, handler.NewAuthHandler(provider, profiles, cfg.CookieSecure))
	router.RegisterPublic(e,
		&handler.PublicHandler{Properties: properties, Profiles: profiles, Inquiries: inquiries, Contacts: contacts},
		&handler.ListingHandler{Ledger: ledger}, cache, inflight)
	router.RegisterDashboard(e, dashboard, inflight)
	router.RegisterAdmin(e, admin, inflight)

	addr := ":" + cfg.Port
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver, "auth", provider.Name())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "err", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
