// Command migrate applies the database migrations and creates the optional
// seed account, then exits. Useful as a deploy step ahead of the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/rehearsalhub/internal/account"
	"github.com/geocoder89/rehearsalhub/internal/auth"
	"github.com/geocoder89/rehearsalhub/internal/config"
	"github.com/geocoder89/rehearsalhub/internal/db"
	"github.com/geocoder89/rehearsalhub/internal/observability"
	"github.com/geocoder89/rehearsalhub/internal/repo/postgres"
	"github.com/geocoder89/rehearsalhub/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := db.Migrate(ctx, cfg.DB.URL); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	log.Info("migrations applied")

	if cfg.Seed.Email == "" {
		return
	}

	pool, err := db.NewPool(cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	accounts := account.NewService(account.Deps{
		Users:  postgres.NewUsersRepo(pool, nil),
		Hasher: security.NewHasher(cfg.BcryptCost),
		Tokens: auth.NewManager(cfg.TokenConfig()),
		Log:    log,
	})

	created, err := db.EnsureSeedUser(ctx, accounts, cfg.Seed)
	if err != nil {
		log.Error("seed failed", "err", err)
		pool.Close()
		os.Exit(1)
	}

	log.Info("seed complete", "email", cfg.Seed.Email, "created", created)
}
