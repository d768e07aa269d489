package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockEmailSender records email sends
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockSMSSender records SMS sends
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, phoneNumber, text string) error {
	args := m.Called(ctx, phoneNumber, text)
	return args.Error(0)
}

// MockBrowserNotifier records browser notifications
type MockBrowserNotifier struct {
	mock.Mock
}

func (m *MockBrowserNotifier) Notify(ctx context.Context, n *Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*User
	passwords map[uuid.UUID]string
	lookupErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:     make(map[uuid.UUID]*User),
		passwords: make(map[uuid.UUID]string),
	}
}

func (f *fakeUsers) add(username, email string) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Role:      RoleCustomer,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, p CreateUserParams) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &User{
		ID:        uuid.New(),
		Username:  p.Username,
		Email:     p.Email,
		Role:      p.Role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	f.users[u.ID] = u
	f.passwords[u.ID] = p.PasswordHash
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) find(match func(*User) bool) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*User, error) {
	return f.find(func(u *User) bool { return u.Email == email })
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*User, error) {
	return f.find(func(u *User) bool { return u.Username == username })
}

func (f *fakeUsers) GetPasswordHash(_ context.Context, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.passwords[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return h, nil
}

func (f *fakeUsers) UpdateUserPassword(_ context.Context, userID uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return ErrUserNotFound
	}
	f.passwords[userID] = hash
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (f *fakeUsers) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetUserByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeUsers) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := f.GetUserByUsername(ctx, username)
	return err == nil, nil
}

type fakePrefs struct {
	mu      sync.Mutex
	prefs   map[uuid.UUID]Preferences
	getErr  error
	saveErr error
	saves   int
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{prefs: make(map[uuid.UUID]Preferences)}
}

func (f *fakePrefs) GetPreferences(_ context.Context, userID uuid.UUID) (*Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return &p, nil
}

func (f *fakePrefs) SavePreferences(_ context.Context, p *Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.prefs[p.UserID] = *p
	return nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	items     []*Notification
	tokens    map[uuid.UUID][]string
	createErr error
	deleteErr error
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{tokens: make(map[uuid.UUID][]string)}
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *n
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeNotifications) filter(match func(*Notification) bool) []*Notification {
	out := make([]*Notification, 0)
	for _, n := range f.items {
		if match(n) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeNotifications) GetNotifications(_ context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.filter(func(n *Notification) bool { return n.UserID == userID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifications) GetUnreadNotifications(_ context.Context, userID uuid.UUID) ([]*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(func(n *Notification) bool { return n.UserID == userID && !n.IsRead }), nil
}

func (f *fakeNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	unread, _ := f.GetUnreadNotifications(ctx, userID)
	return len(unread), nil
}

func (f *fakeNotifications) MarkNotificationRead(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			if n.ReadAt == nil {
				n.ReadAt = &at
			}
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
		}
	}
	return nil
}

func expiredRead(n *Notification, before time.Time) bool {
	return n.IsRead && n.CreatedAt.Before(before) && n.ReadAt != nil && n.ReadAt.Before(before)
}

func (f *fakeNotifications) ListReadBefore(_ context.Context, before time.Time) ([]*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(func(n *Notification) bool { return expiredRead(n, before) }), nil
}

func (f *fakeNotifications) DeleteReadBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	kept := f.items[:0]
	var deleted int64
	for _, n := range f.items {
		if expiredRead(n, before) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.items = kept
	return deleted, nil
}

func (f *fakeNotifications) SaveFCMToken(_ context.Context, userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[userID] = append(f.tokens[userID], token)
	return nil
}

func (f *fakeNotifications) GetFCMTokens(_ context.Context, userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens[userID]...), nil
}

type memOTPStore struct {
	mu    sync.Mutex
	codes map[string]OTP
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{codes: make(map[string]OTP)}
}

func (s *memOTPStore) Save(_ context.Context, email string, otp OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = otp
	return nil
}

func (s *memOTPStore) Update(_ context.Context, email string, fn func(*OTP) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur *OTP
	if otp, ok := s.codes[email]; ok {
		cur = &otp
	}
	remove, err := fn(cur)
	if remove {
		delete(s.codes, email)
	}
	return err
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttls     map[string]time.Duration
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]Session), ttls: make(map[string]time.Duration)}
}

func (s *memSessionStore) Create(_ context.Context, key string, session Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
	s.ttls[key] = ttl
	return nil
}

func (s *memSessionStore) Get(_ context.Context, key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *memSessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *memSessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
