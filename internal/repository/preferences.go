package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ispcare/backend/internal/domain"
)

// GetPreferences retrieves a user's notification preferences
func (r *PostgresRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	query := `
		SELECT user_id,
			email_enabled, email_usage_alerts, email_payment_reminders, email_ticket_updates, email_security_alerts, email_promotions,
			browser_enabled, browser_usage_alerts, browser_payment_reminders, browser_ticket_updates, browser_security_alerts,
			sms_enabled, sms_critical_only, sms_usage_alerts, sms_payment_reminders, sms_security_alerts, phone_number,
			usage_alert_threshold_1, usage_alert_threshold_2, usage_alert_threshold_3, updated_at
		FROM notification_preferences WHERE user_id = $1
	`

	var p domain.Preferences
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.EmailEnabled, &p.EmailUsageAlerts, &p.EmailPaymentReminders, &p.EmailTicketUpdates, &p.EmailSecurityAlerts, &p.EmailPromotions,
		&p.BrowserEnabled, &p.BrowserUsageAlerts, &p.BrowserPaymentReminders, &p.BrowserTicketUpdates, &p.BrowserSecurityAlerts,
		&p.SMSEnabled, &p.SMSCriticalOnly, &p.SMSUsageAlerts, &p.SMSPaymentReminders, &p.SMSSecurityAlerts, &p.PhoneNumber,
		&p.UsageAlertThreshold1, &p.UsageAlertThreshold2, &p.UsageAlertThreshold3, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SavePreferences inserts or fully replaces a user's notification preferences
func (r *PostgresRepository) SavePreferences(ctx context.Context, p *domain.Preferences) error {
	query := `
		INSERT INTO notification_preferences (user_id,
			email_enabled, email_usage_alerts, email_payment_reminders, email_ticket_updates, email_security_alerts, email_promotions,
			browser_enabled, browser_usage_alerts, browser_payment_reminders, browser_ticket_updates, browser_security_alerts,
			sms_enabled, sms_critical_only, sms_usage_alerts, sms_payment_reminders, sms_security_alerts, phone_number,
			usage_alert_threshold_1, usage_alert_threshold_2, usage_alert_threshold_3, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			email_usage_alerts = EXCLUDED.email_usage_alerts,
			email_payment_reminders = EXCLUDED.email_payment_reminders,
			email_ticket_updates = EXCLUDED.email_ticket_updates,
			email_security_alerts = EXCLUDED.email_security_alerts,
			email_promotions = EXCLUDED.email_promotions,
			browser_enabled = EXCLUDED.browser_enabled,
			browser_usage_alerts = EXCLUDED.browser_usage_alerts,
			browser_payment_reminders = EXCLUDED.browser_payment_reminders,
			browser_ticket_updates = EXCLUDED.browser_ticket_updates,
			browser_security_alerts = EXCLUDED.browser_security_alerts,
			sms_enabled = EXCLUDED.sms_enabled,
			sms_critical_only = EXCLUDED.sms_critical_only,
			sms_usage_alerts = EXCLUDED.sms_usage_alerts,
			sms_payment_reminders = EXCLUDED.sms_payment_reminders,
			sms_security_alerts = EXCLUDED.sms_security_alerts,
			phone_number = EXCLUDED.phone_number,
			usage_alert_threshold_1 = EXCLUDED.usage_alert_threshold_1,
			usage_alert_threshold_2 = EXCLUDED.usage_alert_threshold_2,
			usage_alert_threshold_3 = EXCLUDED.usage_alert_threshold_3,
			updated_at = NOW()
		RETURNING updated_at
	`

	return r.db.QueryRow(ctx, query,
		p.UserID,
		p.EmailEnabled, p.EmailUsageAlerts, p.EmailPaymentReminders, p.EmailTicketUpdates, p.EmailSecurityAlerts, p.EmailPromotions,
		p.BrowserEnabled, p.BrowserUsageAlerts, p.BrowserPaymentReminders, p.BrowserTicketUpdates, p.BrowserSecurityAlerts,
		p.SMSEnabled, p.SMSCriticalOnly, p.SMSUsageAlerts, p.SMSPaymentReminders, p.SMSSecurityAlerts, p.PhoneNumber,
		p.UsageAlertThreshold1, p.UsageAlertThreshold2, p.UsageAlertThreshold3,
	).Scan(&p.UpdatedAt)
}
