package notifications

import (
	"context"
	"time"
)

type EmailVerificationInput struct {
	Email     string
	FirstName string
	Token     string
	ExpiresAt time.Time
}

type PasswordResetInput struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Notifier delivers purpose-scoped tokens out of band.
type Notifier interface {
	SendEmailVerification(ctx context.Context, input EmailVerificationInput) error
	SendPasswordReset(ctx context.Context, input PasswordResetInput) error
}
