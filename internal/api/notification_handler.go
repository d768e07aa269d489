package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/internal/middleware"
	"github.com/ispcare/backend/internal/realtime"
	"github.com/ispcare/backend/pkg/response"
	"github.com/ispcare/backend/pkg/validator"
)

type NotificationHandler struct {
	service    *domain.NotificationService
	dispatcher *domain.Dispatcher
	hub        *realtime.Hub
	logger     *zap.Logger
}

func NewNotificationHandler(service *domain.NotificationService, dispatcher *domain.Dispatcher, hub *realtime.Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:    service,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
	}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	limit := domain.DefaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	notifs, err := h.service.GetNotifications(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.logger, err, "failed to fetch notifications")
		return
	}

	response.OK(w, notifs)
}

func (h *NotificationHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	notifs, err := h.service.GetUnread(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "failed to fetch notifications")
		return
	}

	response.OK(w, notifs)
}

func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	count, err := h.service.CountUnread(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "failed to count notifications")
		return
	}

	response.OK(w, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid notification id")
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err, "failed to update notification")
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	if err := h.service.MarkAllRead(r.Context(), userID); err != nil {
		writeError(w, h.logger, err, "failed to update notifications")
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "failed to fetch preferences")
		return
	}

	response.OK(w, prefs)
}

// UpdatePreferences replaces the stored preferences with the request body
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var errs validator.ValidationErrors
	for field, v := range map[string]int{
		"usage_alert_threshold_1": prefs.UsageAlertThreshold1,
		"usage_alert_threshold_2": prefs.UsageAlertThreshold2,
		"usage_alert_threshold_3": prefs.UsageAlertThreshold3,
	} {
		if !validator.ValidatePercent(v) {
			errs.Add(field, "must be between 1 and 100")
		}
	}
	if prefs.PhoneNumber != nil && *prefs.PhoneNumber != "" {
		phone := validator.CleanPhone(*prefs.PhoneNumber)
		if !validator.ValidatePhone(phone) {
			errs.Add("phone_number", "invalid phone number")
		}
		prefs.PhoneNumber = &phone
	}
	if prefs.SMSEnabled && prefs.Phone() == "" {
		errs.Add("phone_number", "required when sms is enabled")
	}
	if errs.HasErrors() {
		response.ValidationFailed(w, errs)
		return
	}

	saved, err := h.service.UpdatePreferences(r.Context(), userID, &prefs)
	if err != nil {
		writeError(w, h.logger, err, "failed to update preferences")
		return
	}

	response.OK(w, saved)
}

// SendTest sends a low priority system notification to the current user
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), userID, domain.CategorySystem,
		"Test Notification",
		"This is a test notification to verify your notification settings are working correctly.",
		domain.PriorityLow)
	if err != nil {
		writeError(w, h.logger, err, "failed to send test notification")
		return
	}

	response.OK(w, result)
}

func (h *NotificationHandler) RegisterFCMToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var req struct {
		FCMToken string `json:"fcm_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FCMToken == "" {
		response.BadRequest(w, "fcm_token is required")
		return
	}

	if err := h.service.SaveFCMToken(r.Context(), userID, req.FCMToken); err != nil {
		writeError(w, h.logger, err, "failed to register token")
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

// Stream upgrades to a websocket that receives new browser notifications live
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	if err := h.hub.ServeWS(w, r, userID); err != nil {
		// The upgrader has already written an error response.
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
