package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidPurpose = errors.New("invalid token purpose")
)

// Purpose scopes a token to the one operation allowed to consume it.
type Purpose int

const (
	Session Purpose = iota
	PasswordReset
	EmailVerification
)

// claim values on the wire; session tokens carry no purpose claim
const (
	purposePasswordReset     = "password-reset"
	purposeEmailVerification = "email-verification"
)

func (p Purpose) String() string {
	switch p {
	case PasswordReset:
		return purposePasswordReset
	case EmailVerification:
		return purposeEmailVerification
	default:
		return ""
	}
}

func parsePurpose(s string) (Purpose, bool) {
	switch s {
	case "":
		return Session, true
	case purposePasswordReset:
		return PasswordReset, true
	case purposeEmailVerification:
		return EmailVerification, true
	default:
		return Session, false
	}
}

type Claims struct {
	UserID  string `json:"id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Config is the explicit token configuration; nothing is read from the
// environment at signing time.
type Config struct {
	Secret          string
	SessionTTL      time.Duration
	ResetTTL        time.Duration
	VerificationTTL time.Duration
}

type Manager struct {
	secret []byte
	ttls   map[Purpose]time.Duration
	now    func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}

	return &Manager{
		secret: []byte(cfg.Secret),
		ttls: map[Purpose]time.Duration{
			Session:           cfg.SessionTTL,
			PasswordReset:     cfg.ResetTTL,
			EmailVerification: cfg.VerificationTTL,
		},
		now: time.Now,
	}
}

// WithClock replaces the time source. Tests use it to move past expiry.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) TTL(p Purpose) time.Duration {
	return m.ttls[p]
}

// Issue signs a token for the given subject and purpose.
func (m *Manager) Issue(userID, email string, p Purpose) (string, time.Time, error) {
	ttl := m.TTL(p)
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("unknown token purpose %d", p)
	}

	now := m.now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:  userID,
		Email:   email,
		Purpose: p.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   userID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks signature and expiry, then requires the token's purpose to
// match expected. Signature or expiry failures return ErrInvalidToken; a
// valid token minted for another operation returns ErrInvalidPurpose.
func (m *Manager) Verify(tokenStr string, expected Purpose) (*Claims, error) {
	claims, err := m.parseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}

	got, known := parsePurpose(claims.Purpose)
	if !known || got != expected {
		return nil, ErrInvalidPurpose
	}

	return claims, nil
}

func (m *Manager) parseAndValidate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
