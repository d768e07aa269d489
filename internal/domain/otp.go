package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"
)

const (
	// DefaultOTPTTL is how long a password reset code stays valid
	DefaultOTPTTL = 10 * time.Minute
	otpDigits     = 6
)

// OTP is a one-time code issued for an email address
type OTP struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPStore keeps at most one OTP per email.
type OTPStore interface {
	// Save stores otp for email, replacing any existing code.
	Save(ctx context.Context, email string, otp OTP) error
	// Update atomically loads the OTP for email and passes it to fn (nil
	// when none is stored). If fn returns remove=true the entry is deleted.
	// fn's error is returned unchanged.
	Update(ctx context.Context, email string, fn func(otp *OTP) (remove bool, err error)) error
}

// OTPManager issues and verifies password reset codes
type OTPManager struct {
	store OTPStore
	ttl   time.Duration
	rand  io.Reader
	now   func() time.Time
}

// NewOTPManager creates a new OTP manager. A non-positive ttl uses DefaultOTPTTL.
func NewOTPManager(store OTPStore, ttl time.Duration) *OTPManager {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPManager{
		store: store,
		ttl:   ttl,
		rand:  rand.Reader,
		now:   time.Now,
	}
}

// TTL returns how long issued codes stay valid
func (m *OTPManager) TTL() time.Duration {
	return m.ttl
}

// Issue generates a new code for email, replacing any earlier one
func (m *OTPManager) Issue(ctx context.Context, email string) (string, error) {
	code, err := randomCode(m.rand, otpDigits)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	otp := OTP{Code: code, ExpiresAt: m.now().Add(m.ttl)}
	if err := m.store.Save(ctx, normalizeEmail(email), otp); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}
	return code, nil
}

// Verify checks code against the stored OTP for email. A matching code is
// consumed; an expired one is cleared; a wrong one is kept for retry.
func (m *OTPManager) Verify(ctx context.Context, email, code string) error {
	now := m.now()
	return m.store.Update(ctx, normalizeEmail(email), func(otp *OTP) (bool, error) {
		if otp == nil {
			return false, ErrNoOTPFound
		}
		if now.After(otp.ExpiresAt) {
			return true, ErrOTPExpired
		}
		if otp.Code != strings.TrimSpace(code) {
			return false, ErrOTPMismatch
		}
		return true, nil
	})
}

func randomCode(r io.Reader, digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(r, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
