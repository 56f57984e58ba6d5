package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/rehearsalhub/internal/account"
	"github.com/geocoder89/rehearsalhub/internal/auth"
	"github.com/geocoder89/rehearsalhub/internal/config"
	"github.com/geocoder89/rehearsalhub/internal/db"
	httpx "github.com/geocoder89/rehearsalhub/internal/http"
	"github.com/geocoder89/rehearsalhub/internal/notifications"
	"github.com/geocoder89/rehearsalhub/internal/observability"
	"github.com/geocoder89/rehearsalhub/internal/ratelimit"
	"github.com/geocoder89/rehearsalhub/internal/redisclient"
	"github.com/geocoder89/rehearsalhub/internal/repo/memory"
	"github.com/geocoder89/rehearsalhub/internal/repo/postgres"
	"github.com/geocoder89/rehearsalhub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "rehearsalhub-api"

type userStore interface {
	account.UserStore
	Ping(ctx context.Context) error
}

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	startCtx, cancel := config.WithTimeout(15 * time.Second)
	defer cancel()

	shutdownTracer, err := observability.InitTracer(startCtx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		ctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	var users userStore

	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory user store; accounts are lost on restart")
		users = memory.NewUsersRepo()
	default:
		if err := db.Migrate(startCtx, cfg.DB.URL); err != nil {
			return err
		}

		pool, err := db.NewPool(cfg.DB.URL, cfg.DB.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		users = postgres.NewUsersRepo(pool, prom)
	}

	if cfg.JWT.Secret == "your_jwt_secret_key_here" && cfg.Env == "prod" {
		log.Warn("JWT_SECRET is the development default")
	}

	tokens := auth.NewManager(cfg.TokenConfig())

	notifier := notifications.NewProtectedNotifier(
		notifications.NewRetryingNotifier(
			notifications.NewLogNotifier(log, cfg.PublicURL),
			notifications.RetryConfig{},
		),
		notifications.ProtectedNotifierConfig{},
	)

	accounts := account.NewService(account.Deps{
		Users:    users,
		Hasher:   security.NewHasher(cfg.BcryptCost),
		Tokens:   tokens,
		Notifier: notifier,
		Log:      log,
		Prom:     prom,
	})

	created, err := db.EnsureSeedUser(startCtx, accounts, cfg.Seed)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if created {
		log.Info("seed user created", "email", cfg.Seed.Email)
	}

	var rateStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(startCtx); err != nil {
			// the limiter fails open, so a missing redis is survivable
			log.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
		rateStore = ratelimit.NewRedisStore(rdb.Raw(), "rehearsalhub:ratelimit:")
	}

	var draining atomic.Bool

	// set up routers with the log
	router := httpx.NewRouter(httpx.RouterDeps{
		Env:            cfg.Env,
		ServiceName:    serviceName,
		Log:            log,
		Accounts:       accounts,
		Tokens:         tokens,
		Ping:           users.Ping,
		Draining:       draining.Load,
		Prom:           prom,
		Gatherer:       reg,
		RateStore:      rateStore,
		AuthRateLimit:  cfg.RateLimit.Auth,
		AuthRateWindow: cfg.RateLimit.Window,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-stop:
	}

	log.Info("server shutting down")
	draining.Store(true)

	ctx, cancelShutdown := config.WithTimeout(10 * time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")

	return nil
}
