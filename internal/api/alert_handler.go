package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/pkg/response"
	"github.com/ispcare/backend/pkg/validator"
)

// Alert types accepted by the admin alert endpoint
const (
	AlertUsage           = "usage"
	AlertUsageCheck      = "usage_check"
	AlertPaymentReminder = "payment_reminder"
	AlertLowBalance      = "low_balance"
	AlertTicketUpdate    = "ticket_update"
	AlertSecurity        = "security"
	AlertNewDevice       = "new_device"
	AlertPlanChange      = "plan_change"
	AlertCustom          = "custom"
)

// AlertHandler lets billing, support and network tooling trigger customer notifications
type AlertHandler struct {
	dispatcher *domain.Dispatcher
	service    *domain.NotificationService
	retention  time.Duration
	logger     *zap.Logger
}

func NewAlertHandler(dispatcher *domain.Dispatcher, service *domain.NotificationService, retention time.Duration, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		dispatcher: dispatcher,
		service:    service,
		retention:  retention,
		logger:     logger,
	}
}

// AlertRequest carries the fields of every alert type; each type reads the ones it needs
type AlertRequest struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"user_id"`

	UsagePercent *int     `json:"usage_percent,omitempty"`
	UsedGB       float64  `json:"used_gb,omitempty"`
	RemainingGB  *float64 `json:"remaining_gb,omitempty"`
	TotalGB      float64  `json:"total_gb,omitempty"`

	Amount  *decimal.Decimal `json:"amount,omitempty"`
	DueDate string           `json:"due_date,omitempty"`
	Balance *decimal.Decimal `json:"balance,omitempty"`

	TicketID string `json:"ticket_id,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Update   string `json:"update,omitempty"`

	DeviceName string `json:"device_name,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`

	OldPlan string `json:"old_plan,omitempty"`
	NewPlan string `json:"new_plan,omitempty"`

	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (req *AlertRequest) validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			errs.Add(field, "is required")
		}
	}

	if req.UserID == uuid.Nil {
		errs.Add("user_id", "is required")
	}

	switch req.Type {
	case AlertUsage:
		if req.TotalGB <= 0 {
			errs.Add("total_gb", "must be positive")
		}
		if req.UsedGB < 0 {
			errs.Add("used_gb", "must not be negative")
		}
		if req.UsagePercent != nil && (*req.UsagePercent < 0 || *req.UsagePercent > 100) {
			errs.Add("usage_percent", "must be between 0 and 100")
		}
	case AlertUsageCheck:
		if req.TotalGB <= 0 {
			errs.Add("total_gb", "must be positive")
		}
		if req.UsedGB < 0 {
			errs.Add("used_gb", "must not be negative")
		}
	case AlertPaymentReminder:
		if req.Amount == nil {
			errs.Add("amount", "is required")
		}
		require("due_date", req.DueDate)
	case AlertLowBalance:
		if req.Balance == nil {
			errs.Add("balance", "is required")
		}
	case AlertTicketUpdate:
		require("ticket_id", req.TicketID)
		require("subject", req.Subject)
		require("update", req.Update)
	case AlertSecurity:
		require("title", req.Title)
		require("message", req.Message)
	case AlertNewDevice:
		require("device_name", req.DeviceName)
		require("ip_address", req.IPAddress)
	case AlertPlanChange:
		require("old_plan", req.OldPlan)
		require("new_plan", req.NewPlan)
	case AlertCustom:
		require("title", req.Title)
		require("message", req.Message)
		if _, err := domain.ParseCategory(req.Category); err != nil {
			errs.Add("category", err.Error())
		}
		if _, err := domain.ParsePriority(req.Priority); err != nil {
			errs.Add("priority", err.Error())
		}
	default:
		errs.Add("type", "unknown alert type")
	}
	return errs
}

// Send dispatches one alert. The response lists the channels that delivered;
// a nil result means a usage check crossed no threshold.
func (h *AlertHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if errs := req.validate(); errs.HasErrors() {
		response.ValidationFailed(w, errs)
		return
	}

	ctx := r.Context()
	var (
		result *domain.DispatchResult
		err    error
	)
	switch req.Type {
	case AlertUsage:
		pct := int(req.UsedGB * 100 / req.TotalGB)
		if req.UsagePercent != nil {
			pct = *req.UsagePercent
		}
		remaining := req.TotalGB - req.UsedGB
		if req.RemainingGB != nil {
			remaining = *req.RemainingGB
		}
		result, err = h.dispatcher.SendUsageAlert(ctx, req.UserID, pct, req.UsedGB, remaining, req.TotalGB)
	case AlertUsageCheck:
		result, err = h.dispatcher.CheckUsage(ctx, req.UserID, req.UsedGB, req.TotalGB)
	case AlertPaymentReminder:
		result, err = h.dispatcher.SendPaymentReminder(ctx, req.UserID, *req.Amount, req.DueDate)
	case AlertLowBalance:
		result, err = h.dispatcher.SendLowBalanceAlert(ctx, req.UserID, *req.Balance)
	case AlertTicketUpdate:
		result, err = h.dispatcher.SendTicketUpdate(ctx, req.UserID, req.TicketID, req.Subject, req.Update)
	case AlertSecurity:
		result, err = h.dispatcher.SendSecurityAlert(ctx, req.UserID, req.Title, req.Message)
	case AlertNewDevice:
		result, err = h.dispatcher.SendNewDeviceAlert(ctx, req.UserID, req.DeviceName, req.IPAddress)
	case AlertPlanChange:
		result, err = h.dispatcher.SendPlanChangeConfirmation(ctx, req.UserID, req.OldPlan, req.NewPlan)
	case AlertCustom:
		category, _ := domain.ParseCategory(req.Category)
		priority, _ := domain.ParsePriority(req.Priority)
		result, err = h.dispatcher.Dispatch(ctx, req.UserID, category, req.Title, req.Message, priority)
	}
	if err != nil {
		writeError(w, h.logger, err, "failed to send alert")
		return
	}

	delivered := []domain.Channel{}
	if result != nil {
		for _, ch := range result.Channels {
			if result.Delivered(ch) {
				delivered = append(delivered, ch)
			}
		}
	}
	response.OK(w, map[string]interface{}{
		"type":      req.Type,
		"sent":      len(delivered) > 0,
		"delivered": delivered,
		"result":    result,
	})
}

// Cleanup runs one notification retention pass immediately
func (h *AlertHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Cleanup(r.Context(), h.retention)
	if err != nil {
		writeError(w, h.logger, err, "notification cleanup failed")
		return
	}
	response.OK(w, result)
}
