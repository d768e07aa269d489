package domain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLivePusher records realtime pushes
type MockLivePusher struct {
	mock.Mock
}

func (m *MockLivePusher) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	m.Called(userID, event, payload)
}

// MockPushSender records device pushes
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	args := m.Called(ctx, token, title, body, data)
	return args.Error(0)
}

// MockArchive captures archived files
type MockArchive struct {
	mock.Mock
	saved []byte
}

func (m *MockArchive) SaveFile(ctx context.Context, file io.Reader, filename, contentType string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	m.saved = data
	args := m.Called(ctx, filename, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) DeleteFile(ctx context.Context, fileURL string) error {
	args := m.Called(ctx, fileURL)
	return args.Error(0)
}

func TestNotificationService_Notify(t *testing.T) {
	ctx := context.Background()
	repo := newFakeNotifications()
	live := &MockLivePusher{}
	push := &MockPushSender{}
	svc := NewNotificationService(repo, newFakePrefs(), live, push, nil, testLogger())

	userID := uuid.New()
	require.NoError(t, repo.SaveFCMToken(ctx, userID, "device-1"))
	require.NoError(t, repo.SaveFCMToken(ctx, userID, "device-2"))

	n := NewBrowserNotification(userID, CategorySecurity, "Alert", "msg", PriorityCritical, time.Now())
	live.On("SendToUser", userID, "notification", n).Once()
	push.On("Send", mock.Anything, "device-1", "Alert", "msg", mock.Anything).Return(nil).Once()
	push.On("Send", mock.Anything, "device-2", "Alert", "msg", mock.Anything).Return(errors.New("unregistered")).Once()

	require.NoError(t, svc.Notify(ctx, n))

	live.AssertExpectations(t)
	push.AssertExpectations(t)
	assert.Len(t, repo.items, 1)

	data := push.Calls[0].Arguments.Get(4).(map[string]string)
	assert.Equal(t, n.ID.String(), data["notification_id"])
	assert.Equal(t, "SECURITY", data["category"])
}

func TestNotificationService_NotifyStoreFailure(t *testing.T) {
	repo := newFakeNotifications()
	repo.createErr = errors.New("db down")
	live := &MockLivePusher{}
	svc := NewNotificationService(repo, newFakePrefs(), live, nil, nil, testLogger())

	n := NewBrowserNotification(uuid.New(), CategorySystem, "t", "m", PriorityLow, time.Now())
	assert.Error(t, svc.Notify(context.Background(), n))
	live.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationService_Inbox(t *testing.T) {
	ctx := context.Background()
	repo := newFakeNotifications()
	svc := NewNotificationService(repo, newFakePrefs(), nil, nil, nil, testLogger())

	userID, otherID := uuid.New(), uuid.New()
	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := NewBrowserNotification(userID, CategorySystem, "t", "m", PriorityLow, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, svc.Notify(ctx, n))
		ids = append(ids, n.ID)
	}
	foreign := NewBrowserNotification(otherID, CategorySystem, "t", "m", PriorityLow, base)
	require.NoError(t, svc.Notify(ctx, foreign))

	list, err := svc.GetNotifications(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)

	count, err := svc.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, svc.MarkRead(ctx, userID, ids[0]))
	assert.ErrorIs(t, svc.MarkRead(ctx, userID, foreign.ID), ErrNotificationNotFound)

	unread, err := svc.GetUnread(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, svc.MarkAllRead(ctx, userID))
	count, err = svc.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.CountUnread(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotificationService_Preferences(t *testing.T) {
	ctx := context.Background()
	prefs := newFakePrefs()
	svc := NewNotificationService(newFakeNotifications(), prefs, nil, nil, nil, testLogger())
	userID := uuid.New()

	got, err := svc.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.EmailEnabled)
	assert.Equal(t, 1, prefs.saves)

	phone := "  +15550100 "
	update := DefaultPreferences(uuid.New())
	update.SMSEnabled = true
	update.PhoneNumber = &phone

	saved, err := svc.UpdatePreferences(ctx, userID, update)
	require.NoError(t, err)
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, "+15550100", saved.Phone())
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err = svc.GetPreferences(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.SMSEnabled)

	blank := " "
	update.PhoneNumber = &blank
	saved, err = svc.UpdatePreferences(ctx, userID, update)
	require.NoError(t, err)
	assert.Nil(t, saved.PhoneNumber)
}

func TestNotificationService_GetPreferencesSaveFailure(t *testing.T) {
	prefs := newFakePrefs()
	prefs.saveErr = errors.New("read only")
	svc := NewNotificationService(newFakeNotifications(), prefs, nil, nil, nil, testLogger())

	got, err := svc.GetPreferences(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, got.BrowserEnabled)
}

func seedExpired(t *testing.T, repo *fakeNotifications, now time.Time) (old, fresh *Notification) {
	t.Helper()
	userID := uuid.New()

	oldAt := now.Add(-40 * 24 * time.Hour)
	old = NewBrowserNotification(userID, CategorySystem, "old", "m", PriorityLow, oldAt)
	old.IsRead = true
	old.ReadAt = &oldAt

	fresh = NewBrowserNotification(userID, CategorySystem, "fresh", "m", PriorityLow, now)
	fresh.IsRead = true
	fresh.ReadAt = &now

	unread := NewBrowserNotification(userID, CategorySystem, "unread", "m", PriorityLow, oldAt)

	for _, n := range []*Notification{old, fresh, unread} {
		require.NoError(t, repo.CreateNotification(context.Background(), n))
	}
	return old, fresh
}

func TestNotificationService_Cleanup(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeNotifications()
	old, _ := seedExpired(t, repo, now)

	archive := &MockArchive{}
	archive.On("SaveFile", mock.Anything, "notifications-20240502T000000.jsonl", "application/x-ndjson").
		Return("https://files.example.com/archive/notifications-20240502T000000.jsonl", nil).Once()

	svc := NewNotificationService(repo, newFakePrefs(), nil, nil, archive, testLogger())
	svc.now = func() time.Time { return now }

	result, err := svc.Cleanup(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Deleted)
	assert.Equal(t, "https://files.example.com/archive/notifications-20240502T000000.jsonl", result.ArchiveURL)
	assert.Len(t, repo.items, 2)
	archive.AssertExpectations(t)

	scanner := bufio.NewScanner(bytes.NewReader(archive.saved))
	var lines []Notification
	for scanner.Scan() {
		var n Notification
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &n))
		lines = append(lines, n)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, old.ID, lines[0].ID)
}

func TestNotificationService_CleanupWithoutArchive(t *testing.T) {
	now := time.Now()
	repo := newFakeNotifications()
	seedExpired(t, repo, now)

	svc := NewNotificationService(repo, newFakePrefs(), nil, nil, nil, testLogger())
	svc.now = func() time.Time { return now }

	result, err := svc.Cleanup(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Deleted)
	assert.Empty(t, result.ArchiveURL)
}

func TestNotificationService_CleanupNothingToDo(t *testing.T) {
	archive := &MockArchive{}
	svc := NewNotificationService(newFakeNotifications(), newFakePrefs(), nil, nil, archive, testLogger())

	result, err := svc.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)
	archive.AssertNotCalled(t, "SaveFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationService_CleanupDeleteFailureRemovesArchive(t *testing.T) {
	now := time.Now()
	repo := newFakeNotifications()
	seedExpired(t, repo, now)
	repo.deleteErr = errors.New("db down")

	archive := &MockArchive{}
	archive.On("SaveFile", mock.Anything, mock.Anything, mock.Anything).Return("/archive/a.jsonl", nil).Once()
	archive.On("DeleteFile", mock.Anything, "/archive/a.jsonl").Return(nil).Once()

	svc := NewNotificationService(repo, newFakePrefs(), nil, nil, archive, testLogger())
	svc.now = func() time.Time { return now }

	_, err := svc.Cleanup(context.Background(), 30*24*time.Hour)
	assert.Error(t, err)
	archive.AssertExpectations(t)
	assert.Len(t, repo.items, 3)
}
