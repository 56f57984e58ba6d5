package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/rehearsalhub/internal/domain/user"
	"github.com/geocoder89/rehearsalhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersEmailUniq = "users_email_uniq"

const userColumns = `id, email, password_hash, first_name, last_name, phone, email_verified, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func scanUser(row pgx.Row) (u user.User, err error) {
	err = row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE email = $1`,
			email,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	// ids are UUIDs; anything else cannot match and would otherwise surface
	// as a cast error from postgres
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.prom.ObserveDB("users.find_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE id = $1`,
			id,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// Create inserts u. The users_email_uniq constraint is the only guard
// against two concurrent registrations of one email.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var saved user.User

	err := r.prom.ObserveDB("users.create", func() error {
		var e error
		saved, e = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			 RETURNING `+userColumns,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.EmailVerified, u.CreatedAt, u.UpdatedAt,
		))
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == usersEmailUniq {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	return saved, nil
}

func (r *UsersRepo) UpdateByID(ctx context.Context, id string, upd user.Update) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	// nothing to set; do not bump updated_at
	if upd.Empty() {
		return r.FindByID(ctx, id)
	}

	var u user.User

	err := r.prom.ObserveDB("users.update_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET password_hash  = COALESCE($2, password_hash),
			     email_verified = COALESCE($3, email_verified),
			     updated_at     = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, upd.PasswordHash, upd.EmailVerified,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
