package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyNotifier struct {
	failures int
	calls    int
}

func (f *flakyNotifier) SendEmailVerification(context.Context, EmailVerificationInput) error {
	return f.send()
}

func (f *flakyNotifier) SendPasswordReset(context.Context, PasswordResetInput) error {
	return f.send()
}

func (f *flakyNotifier) send() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return nil
}

func noSleep(n *RetryingNotifier) *[]time.Duration {
	var slept []time.Duration
	n.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestRetryingNotifier_RecoversFromTransientFailure(t *testing.T) {
	inner := &flakyNotifier{failures: 2}
	n := NewRetryingNotifier(inner, RetryConfig{Attempts: 3, Base: 10 * time.Millisecond, Cap: time.Second})
	slept := noSleep(n)

	if err := n.SendPasswordReset(context.Background(), PasswordResetInput{}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(*slept))
	}
	if (*slept)[1] < (*slept)[0] {
		t.Fatalf("backoff should grow: %v", *slept)
	}
}

func TestRetryingNotifier_GivesUp(t *testing.T) {
	inner := &flakyNotifier{failures: 10}
	n := NewRetryingNotifier(inner, RetryConfig{Attempts: 2})
	noSleep(n)

	if err := n.SendEmailVerification(context.Background(), EmailVerificationInput{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryingNotifier_StopsWhenContextDone(t *testing.T) {
	inner := &flakyNotifier{failures: 10}
	n := NewRetryingNotifier(inner, RetryConfig{Attempts: 5, Base: time.Hour, Cap: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.SendEmailVerification(ctx, EmailVerificationInput{}); err == nil {
		t.Fatal("expected the first failure to be returned")
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single call, got %d", inner.calls)
	}
}

func TestBackoff_Capped(t *testing.T) {
	for attempt := 0; attempt < 40; attempt++ {
		d := backoff(attempt, 100*time.Millisecond, time.Second)
		if d < 100*time.Millisecond || d > time.Second+time.Second/10 {
			t.Fatalf("attempt %d: delay %v out of range", attempt, d)
		}
	}
}
