// Package account implements the authentication workflow: registration,
// login, session refresh, password reset and email verification.
//
// The service owns no state of its own. It validates input, then
// orchestrates a UserStore, a PasswordHasher and a TokenService, and hands
// purpose-scoped tokens to a notifications.Notifier for out-of-band
// delivery.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/rehearsalhub/internal/auth"
	"github.com/geocoder89/rehearsalhub/internal/domain/user"
	"github.com/geocoder89/rehearsalhub/internal/notifications"
	"github.com/geocoder89/rehearsalhub/internal/observability"
	"github.com/geocoder89/rehearsalhub/internal/security"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	UpdateByID(ctx context.Context, id string, upd user.Update) (user.User, error)
}

// PasswordHasher must return security.ErrPasswordMismatch from Compare when
// the password is wrong; any other error is treated as a server failure.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type TokenService interface {
	Issue(userID, email string, p auth.Purpose) (string, time.Time, error)
	Verify(token string, expected auth.Purpose) (*auth.Claims, error)
}

type Deps struct {
	Users    UserStore
	Hasher   PasswordHasher
	Tokens   TokenService
	Notifier notifications.Notifier // optional
	Log      *slog.Logger           // optional
	Prom     *observability.Prom    // optional
}

type Service struct {
	users     UserStore
	hasher    PasswordHasher
	tokens    TokenService
	notifier  notifications.Notifier
	log       *slog.Logger
	prom      *observability.Prom
	validator *validator.Validate
	tracer    trace.Tracer

	// decoyOnce guards decoyHash, compared against when the email is unknown
	// so both login failures cost one bcrypt comparison.
	decoyOnce sync.Once
	decoyHash string
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:     d.Users,
		hasher:    d.Hasher,
		tokens:    d.Tokens,
		notifier:  d.Notifier,
		log:       log,
		prom:      d.Prom,
		validator: newValidator(),
		tracer:    otel.Tracer("github.com/geocoder89/rehearsalhub/internal/account"),
	}
}

type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,password"`
	FirstName string  `json:"firstName" validate:"required,notblank"`
	LastName  string  `json:"lastName" validate:"required,notblank"`
	Phone     *string `json:"phone" validate:"omitempty"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

type forgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// Session is a freshly issued session token for a user.
type Session struct {
	User      user.Public
	Token     string
	ExpiresAt time.Time
}

// Register creates an unverified user and signs them in. An
// email-verification token is issued and handed to the notifier; delivery
// failures are logged and never fail the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (sess Session, err error) {
	ctx, end := s.begin(ctx, "register")
	defer func() { end(err) }()

	if err = s.validate(in); err != nil {
		return Session{}, err
	}

	_, err = s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Session{}, ErrConflict
	case !errors.Is(err, user.ErrNotFound):
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, user.New(user.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	}))
	if err != nil {
		// lost a race with a concurrent registration of the same email
		if errors.Is(err, user.ErrEmailTaken) {
			return Session{}, ErrConflict
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	sess, err = s.issueSession(u)
	if err != nil {
		return Session{}, err
	}

	s.sendVerification(ctx, u)

	return sess, nil
}

// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *Service) Login(ctx context.Context, in LoginInput) (sess Session, err error) {
	ctx, end := s.begin(ctx, "login")
	defer func() { end(err) }()

	if err = s.validate(in); err != nil {
		return Session{}, err
	}

	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.burnComparison(in.Password)
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if err = s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("verify password: %w", err)
	}

	return s.issueSession(u)
}

// Refresh exchanges a valid session token for a new one with a fresh expiry.
// Claims are re-derived from the stored user; the old token is not revoked.
func (s *Service) Refresh(ctx context.Context, token string) (sess Session, err error) {
	ctx, end := s.begin(ctx, "refresh")
	defer func() { end(err) }()

	if strings.TrimSpace(token) == "" {
		return Session{}, ErrTokenRequired
	}

	claims, err := s.tokens.Verify(token, auth.Session)
	if err != nil {
		// a purpose-scoped token is simply not a session token here
		return Session{}, ErrUnauthorized
	}

	u, err := s.subject(ctx, claims)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(u)
}

// ForgotPassword issues a password-reset token for the account behind email.
// Unlike Login it reports unknown accounts with ErrNotFound. The token is
// returned to the caller and also handed to the notifier.
func (s *Service) ForgotPassword(ctx context.Context, email string) (token string, err error) {
	ctx, end := s.begin(ctx, "forgot_password")
	defer func() { end(err) }()

	if err = s.validate(forgotPasswordInput{Email: email}); err != nil {
		return "", err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(u.ID, u.Email, auth.PasswordReset)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}

	if s.notifier != nil {
		sendErr := s.notifier.SendPasswordReset(ctx, notifications.PasswordResetInput{
			Email:     u.Email,
			Token:     token,
			ExpiresAt: expiresAt,
		})
		s.recordDelivery(ctx, "password_reset", u.ID, sendErr)
	}

	return token, nil
}

// ResetPassword replaces the password of the token's subject. Possession of
// a valid password-reset token is the only proof required.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, end := s.begin(ctx, "reset_password")
	defer func() { end(err) }()

	if err = s.validate(in); err != nil {
		return err
	}

	claims, err := s.verifyScoped(in.Token, auth.PasswordReset)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.users.UpdateByID(ctx, claims.UserID, user.Update{PasswordHash: &hash})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// VerifyEmail marks the token's subject as verified. Verifying twice is
// harmless.
func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	ctx, end := s.begin(ctx, "verify_email")
	defer func() { end(err) }()

	claims, err := s.verifyScoped(token, auth.EmailVerification)
	if err != nil {
		return err
	}

	verified := true
	_, err = s.users.UpdateByID(ctx, claims.UserID, user.Update{EmailVerified: &verified})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("mark email verified: %w", err)
	}

	return nil
}

// Me loads the user behind an already verified session.
func (s *Service) Me(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthorized
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	return u, nil
}

func (s *Service) issueSession(u user.User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID, u.Email, auth.Session)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}

	return Session{User: u.Public(), Token: token, ExpiresAt: expiresAt}, nil
}

// verifyScoped maps token failures onto the workflow's taxonomy: a
// well-signed token for another purpose is ErrInvalidPurpose, anything else
// is ErrUnauthorized.
func (s *Service) verifyScoped(token string, p auth.Purpose) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token, p)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPurpose) {
			return nil, ErrInvalidPurpose
		}
		return nil, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) subject(ctx context.Context, claims *auth.Claims) (user.User, error) {
	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthorized
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	return u, nil
}

func (s *Service) sendVerification(ctx context.Context, u user.User) {
	if s.notifier == nil {
		return
	}

	token, expiresAt, err := s.tokens.Issue(u.ID, u.Email, auth.EmailVerification)
	if err != nil {
		s.recordDelivery(ctx, "email_verification", u.ID, fmt.Errorf("issue verification token: %w", err))
		return
	}

	err = s.notifier.SendEmailVerification(ctx, notifications.EmailVerificationInput{
		Email:     u.Email,
		FirstName: u.FirstName,
		Token:     token,
		ExpiresAt: expiresAt,
	})
	s.recordDelivery(ctx, "email_verification", u.ID, err)
}

func (s *Service) recordDelivery(ctx context.Context, kind, userID string, err error) {
	switch {
	case err == nil:
		s.prom.ObserveMailer(kind, "sent")
	case errors.Is(err, notifications.ErrCircuitOpen):
		s.prom.ObserveMailer(kind, "circuit_open")
		s.log.WarnContext(ctx, "notification skipped", "kind", kind, "user_id", userID, "err", err)
	default:
		s.prom.ObserveMailer(kind, "failed")
		s.log.ErrorContext(ctx, "notification failed", "kind", kind, "user_id", userID, "err", err)
	}
}

func (s *Service) burnComparison(plain string) {
	s.decoyOnce.Do(func() {
		h, err := s.hasher.Hash("decoy-password-for-timing")
		if err == nil {
			s.decoyHash = h
		}
	})

	if s.decoyHash != "" {
		_ = s.hasher.Compare(s.decoyHash, plain)
	}
}

// begin opens a span for op and returns a closer that records the outcome
// on the span and in the auth results metric.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "account."+op, trace.WithAttributes(attribute.String("auth.op", op)))

	return ctx, func(err error) {
		result := outcome(err)
		span.SetAttributes(attribute.String("auth.result", result))

		if result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			// callers log the failure with request context
			s.log.DebugContext(ctx, "auth operation failed", "op", op, "err", err)
		}

		s.prom.ObserveAuth(op, result)
		span.End()
	}
}

func outcome(err error) string {
	var verr *ValidationError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenRequired):
		return "unauthorized"
	case errors.Is(err, ErrInvalidPurpose):
		return "invalid_purpose"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
