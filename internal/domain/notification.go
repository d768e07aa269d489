package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category classifies what a notification is about
type Category string

const (
	CategoryUsageAlert Category = "USAGE_ALERT"
	CategoryPayment    Category = "PAYMENT"
	CategoryTicket     Category = "TICKET"
	CategorySecurity   Category = "SECURITY"
	CategorySystem     Category = "SYSTEM"
)

// ParseCategory validates a category string
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryUsageAlert, CategoryPayment, CategoryTicket, CategorySecurity, CategorySystem:
		return c, nil
	}
	return "", ErrInvalidCategory
}

// Label returns a human readable form, e.g. "Usage Alert"
func (c Category) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(string(c)), "_", " "))
}

// Priority is the severity of a notification
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// ParsePriority validates a priority string
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	}
	return "", ErrInvalidPriority
}

// Channel is a delivery path for a notification
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelBrowser Channel = "BROWSER"
	ChannelSMS     Channel = "SMS"
)

// Notification is a stored in-app notification
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      Channel    `json:"type"`
	Category  Category   `json:"category"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  Priority   `json:"priority"`
	IsRead    bool       `json:"is_read"`
	IsSent    bool       `json:"is_sent"`
	Metadata  Map        `json:"metadata,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Map alias for JSONB data
type Map map[string]interface{}

// NewBrowserNotification builds a notification that has already been delivered in-app
func NewBrowserNotification(userID uuid.UUID, category Category, title, message string, priority Priority, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      ChannelBrowser,
		Category:  category,
		Title:     title,
		Message:   message,
		Priority:  priority,
		IsSent:    true,
		CreatedAt: now,
		SentAt:    &now,
	}
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
	GetUnreadNotifications(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error
	ListReadBefore(ctx context.Context, before time.Time) ([]*Notification, error)
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
	SaveFCMToken(ctx context.Context, userID uuid.UUID, token string) error
	GetFCMTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
}
