package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ispcare/backend/internal/domain"
)

// DefaultOTPRetention is how long an expired code is kept so verify can tell
// "expired" apart from "never issued".
const DefaultOTPRetention = 24 * time.Hour

func otpRetention(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultOTPRetention
	}
	return d
}

// MemoryOTPStore keeps OTPs in process memory
type MemoryOTPStore struct {
	mu        sync.Mutex
	codes     map[string]domain.OTP
	retention time.Duration
}

// NewMemoryOTPStore keeps expired codes for retention; zero uses DefaultOTPRetention
func NewMemoryOTPStore(retention time.Duration) *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]domain.OTP), retention: otpRetention(retention)}
}

func (s *MemoryOTPStore) Save(_ context.Context, email string, otp domain.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = otp
	return nil
}

// Update holds the store lock while fn runs, so concurrent verifies of the
// same code cannot both succeed.
func (s *MemoryOTPStore) Update(_ context.Context, email string, fn func(*domain.OTP) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *domain.OTP
	if otp, ok := s.codes[email]; ok {
		current = &otp
	}

	remove, err := fn(current)
	if remove {
		delete(s.codes, email)
	}
	return err
}

// Purge drops OTPs that expired more than the retention period before now
func (s *MemoryOTPStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for email, otp := range s.codes {
		if now.After(otp.ExpiresAt.Add(s.retention)) {
			delete(s.codes, email)
			n++
		}
	}
	return n
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, key string, session domain.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Purge drops every session that expired before now
func (s *MemorySessionStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, key)
			n++
		}
	}
	return n
}

// Purger is implemented by the memory stores
type Purger interface {
	Purge(now time.Time) int
}

// StartJanitor purges expired entries from the given stores every interval
// until ctx is cancelled.
func StartJanitor(ctx context.Context, interval time.Duration, stores ...Purger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, s := range stores {
					s.Purge(now)
				}
			}
		}
	}()
}
