package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testManager() *Manager {
	return NewManager(Config{
		Secret:          "test-secret-key",
		SessionTTL:      24 * time.Hour,
		ResetTTL:        time.Hour,
		VerificationTTL: 24 * time.Hour,
	})
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	m := testManager()

	tests := []struct {
		name    string
		purpose Purpose
		claim   string
	}{
		{name: "session", purpose: Session, claim: ""},
		{name: "password reset", purpose: PasswordReset, claim: "password-reset"},
		{name: "email verification", purpose: EmailVerification, claim: "email-verification"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, exp, err := m.Issue("user-1", "a@x.com", tc.purpose)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}

			if exp.IsZero() {
				t.Fatalf("expected a non-zero expiry")
			}

			claims, err := m.Verify(raw, tc.purpose)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}

			if claims.UserID != "user-1" || claims.Email != "a@x.com" {
				t.Fatalf("unexpected claims: %+v", claims)
			}

			if claims.Purpose != tc.claim {
				t.Fatalf("purpose claim: got %q want %q", claims.Purpose, tc.claim)
			}
		})
	}
}

func TestVerify_PurposeMismatch(t *testing.T) {
	m := testManager()

	session, _, err := m.Issue("user-1", "a@x.com", Session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	reset, _, err := m.Issue("user-1", "a@x.com", PasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name     string
		token    string
		expected Purpose
	}{
		{"session used for reset", session, PasswordReset},
		{"session used for verification", session, EmailVerification},
		{"reset used for session", reset, Session},
		{"reset used for verification", reset, EmailVerification},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Verify(tc.token, tc.expected)
			if !errors.Is(err, ErrInvalidPurpose) {
				t.Fatalf("got %v, want ErrInvalidPurpose", err)
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := testManager().WithClock(func() time.Time { return issuedAt })

	raw, exp, err := m.Issue("user-1", "a@x.com", PasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if got := exp.Sub(issuedAt); got != time.Hour {
		t.Fatalf("reset expiry window: got %s want 1h", got)
	}

	m.WithClock(func() time.Time { return issuedAt.Add(61 * time.Minute) })

	_, err = m.Verify(raw, PasswordReset)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	m := testManager()

	raw, _, err := m.Issue("user-1", "a@x.com", Session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewManager(Config{Secret: "another-secret"})
	if _, err := other.Verify(raw, Session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign secret: got %v, want ErrInvalidToken", err)
	}

	parts := strings.Split(raw, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.Verify(strings.Join(parts, "."), Session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("bad signature: got %v, want ErrInvalidToken", err)
	}

	if _, err := m.Verify("not-a-jwt", Session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: got %v, want ErrInvalidToken", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	m := testManager()

	claims := Claims{
		UserID: "user-1",
		Email:  "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(raw, Session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestIssue_UniquePerCall(t *testing.T) {
	m := testManager()

	a, _, _ := m.Issue("user-1", "a@x.com", Session)
	b, _, _ := m.Issue("user-1", "a@x.com", Session)

	if a == b {
		t.Fatalf("expected distinct tokens for repeated issuance")
	}
}

func TestIssue_ExpiryFollowsPurposeTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := testManager().WithClock(func() time.Time { return now })

	for _, p := range []Purpose{Session, PasswordReset, EmailVerification} {
		_, exp, err := m.Issue("user-1", "a@x.com", p)
		if err != nil {
			t.Fatalf("Issue(%v): %v", p, err)
		}
		if want := now.Add(m.TTL(p)); !exp.Equal(want) {
			t.Fatalf("purpose %v: exp %v, want %v", p, exp, want)
		}
	}

	if m.TTL(PasswordReset) != time.Hour {
		t.Fatalf("reset TTL: %v", m.TTL(PasswordReset))
	}

	if _, _, err := m.Issue("user-1", "a@x.com", Purpose(99)); err == nil {
		t.Fatal("expected unknown purpose to fail")
	}
}
