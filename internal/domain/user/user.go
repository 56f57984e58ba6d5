package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // never expose hash in JSON
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Phone         *string   `json:"phone,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public is the shape returned from register and login.
type Public struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
}

// New builds an unverified user with a fresh id. Names are trimmed and a
// blank phone is dropped.
func New(in NewUser) User {
	now := time.Now().UTC()

	var phone *string
	if in.Phone != nil {
		if p := strings.TrimSpace(*in.Phone); p != "" {
			phone = &p
		}
	}

	return User{
		ID:            uuid.NewString(),
		Email:         in.Email,
		PasswordHash:  in.PasswordHash,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Phone:         phone,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	PasswordHash  *string
	EmailVerified *bool
}

func (u Update) Empty() bool {
	return u.PasswordHash == nil && u.EmailVerified == nil
}

// Apply returns a copy of usr with the update applied and UpdatedAt bumped.
func (u Update) Apply(usr User, now time.Time) User {
	if u.PasswordHash != nil {
		usr.PasswordHash = *u.PasswordHash
	}
	if u.EmailVerified != nil {
		usr.EmailVerified = *u.EmailVerified
	}
	usr.UpdatedAt = now

	return usr
}
