package notifications

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type RetryConfig struct {
	Attempts int           // total tries, including the first
	Base     time.Duration // delay before the second try
	Cap      time.Duration
}

// RetryingNotifier retries a failed delivery with exponential backoff. It
// sits inside ProtectedNotifier so one logical send counts once toward the
// breaker.
type RetryingNotifier struct {
	inner Notifier
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryingNotifier(inner Notifier, cfg RetryConfig) *RetryingNotifier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Base <= 0 {
		cfg.Base = 100 * time.Millisecond
	}
	if cfg.Cap <= 0 {
		cfg.Cap = time.Second
	}

	return &RetryingNotifier{inner: inner, cfg: cfg, sleep: sleepCtx}
}

func (n *RetryingNotifier) SendEmailVerification(ctx context.Context, input EmailVerificationInput) error {
	return n.retry(ctx, func(ctx context.Context) error {
		return n.inner.SendEmailVerification(ctx, input)
	})
}

func (n *RetryingNotifier) SendPasswordReset(ctx context.Context, input PasswordResetInput) error {
	return n.retry(ctx, func(ctx context.Context) error {
		return n.inner.SendPasswordReset(ctx, input)
	})
}

func (n *RetryingNotifier) retry(ctx context.Context, send func(context.Context) error) error {
	var err error

	for attempt := 0; attempt < n.cfg.Attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := n.sleep(ctx, backoff(attempt-1, n.cfg.Base, n.cfg.Cap)); sleepErr != nil {
				return err
			}
		}

		err = send(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

// backoff doubles base per attempt up to max, plus up to 10% jitter.
// attempt=0 => base, attempt=1 => 2*base, ...
func backoff(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	if delay > max || delay <= 0 {
		delay = max
	}

	if jitter := int64(delay / 10); jitter > 0 {
		delay += time.Duration(rand.Int63n(jitter))
	}

	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
