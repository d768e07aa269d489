package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SMS wire limits
const (
	smsMaxLength = 140
	smsCutLength = 137
)

var lowBalanceLimit = decimal.NewFromInt(10)

// EmailSender delivers a plain text email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a text message
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, text string) error
}

// BrowserNotifier persists an in-app notification and pushes it to the user's devices
type BrowserNotifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// DispatchResult records which channels were used for one notification
type DispatchResult struct {
	Priority Priority  `json:"priority"`
	Channels []Channel `json:"channels"`
	Failed   []Channel `json:"failed,omitempty"`
}

// Delivered reports whether ch was attempted and succeeded
func (r *DispatchResult) Delivered(ch Channel) bool {
	attempted := false
	for _, c := range r.Channels {
		if c == ch {
			attempted = true
		}
	}
	for _, c := range r.Failed {
		if c == ch {
			return false
		}
	}
	return attempted
}

// Dispatcher decides which channels a notification goes out on and renders
// the message for each of them.
type Dispatcher struct {
	users   UserLookup
	prefs   PreferencesRepository
	email   EmailSender
	sms     SMSSender
	browser BrowserNotifier
	logger  *zap.Logger
	now     func() time.Time
}

// NewDispatcher creates a new dispatcher. Any sender may be nil, in which
// case that channel is never used.
func NewDispatcher(users UserLookup, prefs PreferencesRepository, email EmailSender, sms SMSSender, browser BrowserNotifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		users:   users,
		prefs:   prefs,
		email:   email,
		sms:     sms,
		browser: browser,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch sends a notification over every channel the user's preferences
// allow. Channel failures are logged and never returned; the only error is
// ErrUserNotFound.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, category Category, title, message string, priority Priority) (*DispatchResult, error) {
	result := &DispatchResult{Priority: priority}
	log := d.logger.With(
		zap.String("user_id", userID.String()),
		zap.String("category", string(category)),
		zap.String("priority", string(priority)),
	)

	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("notification dropped: user not found")
			return nil, ErrUserNotFound
		}
		log.Warn("notification dropped: user lookup failed", zap.Error(err))
		return result, nil
	}

	prefs, err := loadPreferences(ctx, d.prefs, userID)
	if err != nil {
		log.Warn("failed to load notification preferences", zap.Error(err))
		if prefs == nil {
			prefs = DefaultPreferences(userID)
		}
	}

	sends := make(map[Channel]func(context.Context) error, 3)
	if d.email != nil && prefs.Allows(ChannelEmail, category, priority) {
		body := buildEmailBody(user.Username, title, message, category)
		sends[ChannelEmail] = func(ctx context.Context) error {
			return d.email.SendEmail(ctx, user.Email, title, body)
		}
	}
	if d.browser != nil && prefs.Allows(ChannelBrowser, category, priority) {
		n := NewBrowserNotification(userID, category, title, message, priority, d.now())
		sends[ChannelBrowser] = func(ctx context.Context) error {
			return d.browser.Notify(ctx, n)
		}
	}
	if d.sms != nil && prefs.Allows(ChannelSMS, category, priority) {
		if phone := prefs.Phone(); phone != "" {
			text := composeSMS(title, message)
			sends[ChannelSMS] = func(ctx context.Context) error {
				return d.sms.SendSMS(ctx, phone, text)
			}
		} else {
			log.Debug("sms eligible but no phone number on file")
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[Channel]bool, len(sends))
	)
	for _, ch := range []Channel{ChannelEmail, ChannelBrowser, ChannelSMS} {
		send, ok := sends[ch]
		if !ok {
			continue
		}
		result.Channels = append(result.Channels, ch)

		wg.Add(1)
		go func(ch Channel, send func(context.Context) error) {
			defer wg.Done()
			if err := send(ctx); err != nil {
				log.Warn("channel send failed", zap.String("channel", string(ch)), zap.Error(err))
				mu.Lock()
				failed[ch] = true
				mu.Unlock()
			}
		}(ch, send)
	}
	wg.Wait()

	for _, ch := range result.Channels {
		if failed[ch] {
			result.Failed = append(result.Failed, ch)
		}
	}

	log.Info("notification dispatched",
		zap.String("title", title),
		zap.Any("channels", result.Channels),
		zap.Any("failed", result.Failed),
	)
	return result, nil
}

// UsagePriority maps a data usage percentage to a priority
func UsagePriority(pct int) Priority {
	switch {
	case pct >= 90:
		return PriorityCritical
	case pct >= 75:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// LowBalancePriority maps an account balance to a priority
func LowBalancePriority(balance decimal.Decimal) Priority {
	if balance.LessThan(lowBalanceLimit) {
		return PriorityCritical
	}
	return PriorityHigh
}

// SendUsageAlert notifies a user about their data usage
func (d *Dispatcher) SendUsageAlert(ctx context.Context, userID uuid.UUID, pct int, usedGB, remainingGB, totalGB float64) (*DispatchResult, error) {
	title := fmt.Sprintf("Data Usage Alert - %d%% Used", pct)
	message := fmt.Sprintf("You have used %d%% (%.2f GB) of your %d GB data plan. %.2f GB remaining.",
		pct, usedGB, int(totalGB), remainingGB)
	return d.Dispatch(ctx, userID, CategoryUsageAlert, title, message, UsagePriority(pct))
}

// SendPaymentReminder notifies a user about an upcoming payment
func (d *Dispatcher) SendPaymentReminder(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, dueDate string) (*DispatchResult, error) {
	message := fmt.Sprintf("Your payment of $%s is due on %s. Please pay to avoid service interruption.",
		amount.StringFixed(2), dueDate)
	return d.Dispatch(ctx, userID, CategoryPayment, "Payment Reminder", message, PriorityHigh)
}

// SendLowBalanceAlert notifies a user that their balance is running low
func (d *Dispatcher) SendLowBalanceAlert(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) (*DispatchResult, error) {
	message := fmt.Sprintf("Your account balance is low: $%s. Please recharge to continue service.",
		balance.StringFixed(2))
	return d.Dispatch(ctx, userID, CategoryPayment, "Low Balance Alert", message, LowBalancePriority(balance))
}

// SendTicketUpdate notifies a user that one of their support tickets changed
func (d *Dispatcher) SendTicketUpdate(ctx context.Context, userID uuid.UUID, ticketID, subject, update string) (*DispatchResult, error) {
	shortID := ticketID
	if r := []rune(shortID); len(r) > 8 {
		shortID = string(r[:8])
	}
	title := "Ticket Updated: " + subject
	message := fmt.Sprintf("Your support ticket #%s has been updated:\n\n%s", shortID, update)
	return d.Dispatch(ctx, userID, CategoryTicket, title, message, PriorityMedium)
}

// SendSecurityAlert sends a critical security notification
func (d *Dispatcher) SendSecurityAlert(ctx context.Context, userID uuid.UUID, title, message string) (*DispatchResult, error) {
	return d.Dispatch(ctx, userID, CategorySecurity, title, message, PriorityCritical)
}

// SendNewDeviceAlert notifies a user that a new device joined their network
func (d *Dispatcher) SendNewDeviceAlert(ctx context.Context, userID uuid.UUID, deviceName, ipAddress string) (*DispatchResult, error) {
	message := fmt.Sprintf("A new device '%s' (IP: %s) has connected to your network.", deviceName, ipAddress)
	return d.Dispatch(ctx, userID, CategorySecurity, "New Device Connected", message, PriorityMedium)
}

// SendPlanChangeConfirmation confirms a data plan change
func (d *Dispatcher) SendPlanChangeConfirmation(ctx context.Context, userID uuid.UUID, oldPlan, newPlan string) (*DispatchResult, error) {
	message := fmt.Sprintf("Your plan has been changed from '%s' to '%s'. The new plan is now active.", oldPlan, newPlan)
	return d.Dispatch(ctx, userID, CategorySystem, "Plan Changed Successfully", message, PriorityLow)
}

// CheckUsage compares a user's usage against their alert thresholds and
// sends a usage alert for the highest threshold crossed. It returns a nil
// result when no threshold is crossed.
func (d *Dispatcher) CheckUsage(ctx context.Context, userID uuid.UUID, usedGB, totalGB float64) (*DispatchResult, error) {
	if totalGB <= 0 {
		return nil, fmt.Errorf("total plan size must be positive, got %.2f", totalGB)
	}
	if _, err := d.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	prefs, err := loadPreferences(ctx, d.prefs, userID)
	if err != nil {
		d.logger.Warn("failed to load notification preferences",
			zap.String("user_id", userID.String()), zap.Error(err))
		if prefs == nil {
			prefs = DefaultPreferences(userID)
		}
	}

	pct := int(usedGB * 100 / totalGB)
	if prefs.CrossedThreshold(pct) == 0 {
		return nil, nil
	}

	remaining := totalGB - usedGB
	if remaining < 0 {
		remaining = 0
	}
	return d.SendUsageAlert(ctx, userID, pct, usedGB, remaining, totalGB)
}

func composeSMS(title, message string) string {
	text := title + ": " + message
	runes := []rune(text)
	if len(runes) > smsMaxLength {
		return string(runes[:smsCutLength]) + "..."
	}
	return text
}

func buildEmailBody(username, title, message string, category Category) string {
	return fmt.Sprintf(`Dear %s,

%s

%s

---
This is an automated %s notification from ISP Management System.
To manage your notification preferences, log in to your account.

Best regards,
ISP Management Team
`, username, title, message, category.Label())
}
