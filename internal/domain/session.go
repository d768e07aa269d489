package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ispcare/backend/internal/auth"
)

// Session represents a logged in user
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the session has passed its expiry
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// SessionStore keeps sessions keyed by the hash of their token
type SessionStore interface {
	// Create stores a session. A positive ttl lets the store evict it on its own.
	Create(ctx context.Context, key string, session Session, ttl time.Duration) error
	// Get returns ErrSessionNotFound when no session is stored under key.
	Get(ctx context.Context, key string) (*Session, error)
	Delete(ctx context.Context, key string) error
}

// SessionManager creates and resolves login sessions
type SessionManager struct {
	store  SessionStore
	tokens *auth.TokenManager
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a session manager. A ttl of zero keeps sessions
// alive until logout.
func NewSessionManager(store SessionStore, tokens *auth.TokenManager, ttl time.Duration) *SessionManager {
	return &SessionManager{
		store:  store,
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create starts a session for userID and returns its opaque token
func (m *SessionManager) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	now := m.now()
	token, sessionID, err := m.tokens.Issue(userID, now, m.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}

	session := Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
	}
	if m.ttl > 0 {
		expiresAt := now.Add(m.ttl)
		session.ExpiresAt = &expiresAt
	}

	if err := m.store.Create(ctx, auth.HashToken(token), session, m.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Resolve returns the user a token belongs to
func (m *SessionManager) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := m.tokens.Validate(token, m.now())
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			_ = m.store.Delete(ctx, auth.HashToken(token))
			return uuid.Nil, ErrSessionExpired
		}
		return uuid.Nil, ErrSessionNotFound
	}

	key := auth.HashToken(token)
	session, err := m.store.Get(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}
	if session.IsExpired(m.now()) {
		_ = m.store.Delete(ctx, key)
		return uuid.Nil, ErrSessionExpired
	}
	if session.UserID != claims.UserID || session.ID != claims.SessionID {
		return uuid.Nil, ErrSessionNotFound
	}
	return session.UserID, nil
}

// Destroy ends the session behind token. Unknown tokens are ignored.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	return m.store.Delete(ctx, auth.HashToken(token))
}
