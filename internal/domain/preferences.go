package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Default usage alert thresholds in percent
const (
	DefaultUsageThreshold1 = 50
	DefaultUsageThreshold2 = 75
	DefaultUsageThreshold3 = 90
)

// Preferences holds a user's per-channel, per-category opt-ins
type Preferences struct {
	UserID uuid.UUID `json:"user_id"`

	EmailEnabled          bool `json:"email_enabled"`
	EmailUsageAlerts      bool `json:"email_usage_alerts"`
	EmailPaymentReminders bool `json:"email_payment_reminders"`
	EmailTicketUpdates    bool `json:"email_ticket_updates"`
	EmailSecurityAlerts   bool `json:"email_security_alerts"`
	EmailPromotions       bool `json:"email_promotions"`

	BrowserEnabled          bool `json:"browser_enabled"`
	BrowserUsageAlerts      bool `json:"browser_usage_alerts"`
	BrowserPaymentReminders bool `json:"browser_payment_reminders"`
	BrowserTicketUpdates    bool `json:"browser_ticket_updates"`
	BrowserSecurityAlerts   bool `json:"browser_security_alerts"`

	SMSEnabled          bool    `json:"sms_enabled"`
	SMSCriticalOnly     bool    `json:"sms_critical_only"`
	SMSUsageAlerts      bool    `json:"sms_usage_alerts"`
	SMSPaymentReminders bool    `json:"sms_payment_reminders"`
	SMSSecurityAlerts   bool    `json:"sms_security_alerts"`
	PhoneNumber         *string `json:"phone_number,omitempty"`

	UsageAlertThreshold1 int `json:"usage_alert_threshold_1"`
	UsageAlertThreshold2 int `json:"usage_alert_threshold_2"`
	UsageAlertThreshold3 int `json:"usage_alert_threshold_3"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences used when a user has none stored
func DefaultPreferences(userID uuid.UUID) *Preferences {
	return &Preferences{
		UserID: userID,

		EmailEnabled:          true,
		EmailUsageAlerts:      true,
		EmailPaymentReminders: true,
		EmailTicketUpdates:    true,
		EmailSecurityAlerts:   true,
		EmailPromotions:       false,

		BrowserEnabled:          true,
		BrowserUsageAlerts:      true,
		BrowserPaymentReminders: true,
		BrowserTicketUpdates:    true,
		BrowserSecurityAlerts:   true,

		SMSEnabled:          false,
		SMSCriticalOnly:     true,
		SMSUsageAlerts:      false,
		SMSPaymentReminders: false,
		SMSSecurityAlerts:   true,

		UsageAlertThreshold1: DefaultUsageThreshold1,
		UsageAlertThreshold2: DefaultUsageThreshold2,
		UsageAlertThreshold3: DefaultUsageThreshold3,
	}
}

// Allows reports whether a notification of the given category and priority
// may be delivered over ch.
func (p *Preferences) Allows(ch Channel, category Category, priority Priority) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled && p.emailCategory(category)
	case ChannelBrowser:
		return p.BrowserEnabled && p.browserCategory(category)
	case ChannelSMS:
		if !p.SMSEnabled {
			return false
		}
		if p.SMSCriticalOnly && priority != PriorityCritical {
			return false
		}
		return p.smsCategory(category, priority)
	}
	return false
}

func (p *Preferences) emailCategory(c Category) bool {
	switch c {
	case CategoryUsageAlert:
		return p.EmailUsageAlerts
	case CategoryPayment:
		return p.EmailPaymentReminders
	case CategoryTicket:
		return p.EmailTicketUpdates
	case CategorySecurity:
		return p.EmailSecurityAlerts
	case CategorySystem:
		return true
	}
	return false
}

func (p *Preferences) browserCategory(c Category) bool {
	switch c {
	case CategoryUsageAlert:
		return p.BrowserUsageAlerts
	case CategoryPayment:
		return p.BrowserPaymentReminders
	case CategoryTicket:
		return p.BrowserTicketUpdates
	case CategorySecurity:
		return p.BrowserSecurityAlerts
	case CategorySystem:
		return true
	}
	return false
}

// Ticket and system notifications have no SMS opt-in of their own and only
// go out by SMS when critical.
func (p *Preferences) smsCategory(c Category, priority Priority) bool {
	switch c {
	case CategoryUsageAlert:
		return p.SMSUsageAlerts
	case CategoryPayment:
		return p.SMSPaymentReminders
	case CategorySecurity:
		return p.SMSSecurityAlerts
	case CategoryTicket, CategorySystem:
		return priority == PriorityCritical
	}
	return false
}

// Phone returns the SMS number, or "" when none is set
func (p *Preferences) Phone() string {
	if p.PhoneNumber == nil {
		return ""
	}
	return *p.PhoneNumber
}

// SortedThresholds returns the usage thresholds in ascending order.
// Stored values are not required to be ordered.
func (p *Preferences) SortedThresholds() []int {
	t := []int{p.UsageAlertThreshold1, p.UsageAlertThreshold2, p.UsageAlertThreshold3}
	sort.Ints(t)
	return t
}

// CrossedThreshold returns the highest threshold at or below pct, or 0 if
// pct is under all of them.
func (p *Preferences) CrossedThreshold(pct int) int {
	crossed := 0
	for _, t := range p.SortedThresholds() {
		if t > 0 && pct >= t {
			crossed = t
		}
	}
	return crossed
}

type PreferencesRepository interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs *Preferences) error
}

// loadPreferences returns the stored preferences for a user. When none are
// stored the defaults are persisted and returned.
func loadPreferences(ctx context.Context, repo PreferencesRepository, userID uuid.UUID) (*Preferences, error) {
	prefs, err := repo.GetPreferences(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, ErrPreferencesNotFound) {
		return nil, err
	}

	prefs = DefaultPreferences(userID)
	if err := repo.SavePreferences(ctx, prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}
