package domain

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func newTestOTPManager(now time.Time) (*OTPManager, *memOTPStore, *time.Time) {
	store := newMemOTPStore()
	m := NewOTPManager(store, 10*time.Minute)
	clock := now
	m.now = func() time.Time { return clock }
	return m, store, &clock
}

func TestOTPManager_Issue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m, store, _ := newTestOTPManager(now)

	code, err := m.Issue(context.Background(), " User@Example.com ")
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code)

	stored, ok := store.codes["user@example.com"]
	require.True(t, ok)
	assert.Equal(t, code, stored.Code)
	assert.Equal(t, now.Add(10*time.Minute), stored.ExpiresAt)
}

func TestOTPManager_DefaultTTL(t *testing.T) {
	m := NewOTPManager(newMemOTPStore(), 0)
	assert.Equal(t, DefaultOTPTTL, m.TTL())
}

func TestOTPManager_Verify(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		setup    func(store *memOTPStore)
		code     string
		advance  time.Duration
		wantErr  error
		wantKept bool
	}{
		{
			name:    "no code issued",
			setup:   func(store *memOTPStore) {},
			code:    "123456",
			wantErr: ErrNoOTPFound,
		},
		{
			name: "expired code is cleared",
			setup: func(store *memOTPStore) {
				store.codes["a@b.com"] = OTP{Code: "123456", ExpiresAt: now.Add(time.Minute)}
			},
			code:    "123456",
			advance: 2 * time.Minute,
			wantErr: ErrOTPExpired,
		},
		{
			name: "mismatch keeps code",
			setup: func(store *memOTPStore) {
				store.codes["a@b.com"] = OTP{Code: "123456", ExpiresAt: now.Add(time.Minute)}
			},
			code:     "654321",
			wantErr:  ErrOTPMismatch,
			wantKept: true,
		},
		{
			name: "match consumes code",
			setup: func(store *memOTPStore) {
				store.codes["a@b.com"] = OTP{Code: "123456", ExpiresAt: now.Add(time.Minute)}
			},
			code: " 123456 ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, clock := newTestOTPManager(now)
			tt.setup(store)
			*clock = now.Add(tt.advance)

			err := m.Verify(ctx, "A@B.com", tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			_, kept := store.codes["a@b.com"]
			assert.Equal(t, tt.wantKept, kept)
		})
	}
}

func TestOTPManager_ReissueReplaces(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOTPManager(time.Now())

	first, err := m.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	second, err := m.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, m.Verify(ctx, "a@b.com", first), ErrOTPMismatch)
	}
	assert.NoError(t, m.Verify(ctx, "a@b.com", second))
	assert.ErrorIs(t, m.Verify(ctx, "a@b.com", second), ErrNoOTPFound)
}

func TestOTPManager_ConcurrentVerifyConsumesOnce(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOTPManager(time.Now())

	code, err := m.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Verify(ctx, "a@b.com", code) == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}
