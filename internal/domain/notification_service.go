package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// LivePusher delivers a notification to a user's open realtime connections
type LivePusher interface {
	SendToUser(userID uuid.UUID, event string, payload interface{})
}

// PushSender delivers a push message to a single device token
type PushSender interface {
	Send(ctx context.Context, token string, title, body string, data map[string]string) error
}

// ArchiveStorage receives retention archives. Satisfied by storage.FileStorage.
type ArchiveStorage interface {
	SaveFile(ctx context.Context, file io.Reader, filename string, contentType string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
}

type NotificationService struct {
	repo    NotificationRepository
	prefs   PreferencesRepository
	live    LivePusher
	push    PushSender
	archive ArchiveStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService creates the inbox service. live, push and archive
// are optional.
func NewNotificationService(repo NotificationRepository, prefs PreferencesRepository, live LivePusher, push PushSender, archive ArchiveStorage, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:    repo,
		prefs:   prefs,
		live:    live,
		push:    push,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify stores a browser notification and pushes it to the user's live
// connections and registered devices. Only the store step can fail.
func (s *NotificationService) Notify(ctx context.Context, n *Notification) error {
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	if s.live != nil {
		s.live.SendToUser(n.UserID, "notification", n)
	}

	if s.push != nil {
		tokens, err := s.repo.GetFCMTokens(ctx, n.UserID)
		if err != nil {
			s.logger.Warn("failed to get fcm tokens", zap.String("user_id", n.UserID.String()), zap.Error(err))
			return nil
		}

		data := map[string]string{
			"notification_id": n.ID.String(),
			"category":        string(n.Category),
			"priority":        string(n.Priority),
		}
		for _, token := range tokens {
			if token == "" {
				continue
			}
			if err := s.push.Send(ctx, token, n.Title, n.Message, data); err != nil {
				s.logger.Debug("push delivery failed", zap.String("user_id", n.UserID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.repo.GetNotifications(ctx, userID, limit)
}

func (s *NotificationService) GetUnread(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	return s.repo.GetUnreadNotifications(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications read. Returns
// ErrNotificationNotFound when it does not belong to the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkNotificationRead(ctx, userID, notificationID, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

// GetPreferences returns the user's preferences, creating the defaults on first access
func (s *NotificationService) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	prefs, err := loadPreferences(ctx, s.prefs, userID)
	if err != nil && prefs != nil {
		s.logger.Warn("failed to persist default preferences", zap.String("user_id", userID.String()), zap.Error(err))
		return prefs, nil
	}
	return prefs, err
}

// UpdatePreferences replaces the user's preferences
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs *Preferences) (*Preferences, error) {
	prefs.UserID = userID
	if prefs.PhoneNumber != nil {
		phone := strings.TrimSpace(*prefs.PhoneNumber)
		if phone == "" {
			prefs.PhoneNumber = nil
		} else {
			prefs.PhoneNumber = &phone
		}
	}
	prefs.UpdatedAt = s.now()
	if err := s.prefs.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *NotificationService) SaveFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	return s.repo.SaveFCMToken(ctx, userID, strings.TrimSpace(token))
}

// CleanupResult describes one retention pass
type CleanupResult struct {
	Deleted    int64  `json:"deleted"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// Cleanup deletes read notifications older than retention. When archive
// storage is configured they are first written there as JSON lines.
func (s *NotificationService) Cleanup(ctx context.Context, retention time.Duration) (*CleanupResult, error) {
	cutoff := s.now().Add(-retention)
	result := &CleanupResult{}

	if s.archive != nil {
		old, err := s.repo.ListReadBefore(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to list expired notifications: %w", err)
		}
		if len(old) == 0 {
			return result, nil
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, n := range old {
			if err := enc.Encode(n); err != nil {
				return nil, fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
			}
		}

		name := fmt.Sprintf("notifications-%s.jsonl", cutoff.UTC().Format("20060102T150405"))
		url, err := s.archive.SaveFile(ctx, &buf, name, "application/x-ndjson")
		if err != nil {
			return nil, fmt.Errorf("failed to archive notifications: %w", err)
		}
		result.ArchiveURL = url
	}

	deleted, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		if result.ArchiveURL != "" {
			if derr := s.archive.DeleteFile(ctx, result.ArchiveURL); derr != nil {
				s.logger.Warn("failed to remove orphaned archive", zap.String("url", result.ArchiveURL), zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	result.Deleted = deleted
	return result, nil
}

// StartCleanupWorker runs Cleanup every interval until ctx is cancelled
func (s *NotificationService) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := s.Cleanup(ctx, retention)
				if err != nil {
					s.logger.Error("notification cleanup failed", zap.Error(err))
					continue
				}
				if res.Deleted > 0 {
					s.logger.Info("notification cleanup",
						zap.Int64("deleted", res.Deleted),
						zap.String("archive", res.ArchiveURL))
				}
			}
		}
	}()
}
