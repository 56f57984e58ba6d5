package db

import (
	"context"
	"errors"

	"github.com/geocoder89/rehearsalhub/internal/account"
	"github.com/geocoder89/rehearsalhub/internal/config"
)

type Registrar interface {
	Register(ctx context.Context, in account.RegisterInput) (account.Session, error)
}

// EnsureSeedUser registers the configured seed account through the normal
// workflow, so it is hashed and validated like any other. An existing
// account is left untouched.
func EnsureSeedUser(ctx context.Context, accounts Registrar, seed config.Seed) (created bool, err error) {
	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}

	_, err = accounts.Register(ctx, account.RegisterInput{
		Email:     seed.Email,
		Password:  seed.Password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
	})

	if errors.Is(err, account.ErrConflict) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
