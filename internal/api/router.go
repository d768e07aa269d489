package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	authHandler         *AuthHandler
	notificationHandler *NotificationHandler
	alertHandler        *AlertHandler
	healthHandler       *HealthHandler
	authenticator       middleware.Authenticator
	allowedOrigins      []string
	logger              *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	authHandler *AuthHandler,
	notificationHandler *NotificationHandler,
	alertHandler *AlertHandler,
	healthHandler *HealthHandler,
	authenticator middleware.Authenticator,
	allowedOrigins []string,
	logger *zap.Logger,
) *Router {
	return &Router{
		authHandler:         authHandler,
		notificationHandler: notificationHandler,
		alertHandler:        alertHandler,
		healthHandler:       healthHandler,
		authenticator:       authenticator,
		allowedOrigins:      allowedOrigins,
		logger:              logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware(rt.allowedOrigins))

	// Health endpoints (no auth required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.authHandler.Register)
			r.Post("/login", rt.authHandler.Login)
			r.Post("/forgot-password", rt.authHandler.ForgotPassword)
			r.Post("/reset-password", rt.authHandler.ResetPassword)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.authenticator))

			r.Post("/auth/logout", rt.authHandler.Logout)
			r.Get("/me", rt.authHandler.Me)

			r.Route("/notifications", func(r chi.Router) {
				// Websocket upgrades must not pass through Compress
				r.Get("/ws", rt.notificationHandler.Stream)

				r.Group(func(r chi.Router) {
					r.Use(chimiddleware.Compress(5))
					r.Get("/", rt.notificationHandler.GetNotifications)
					r.Get("/unread", rt.notificationHandler.GetUnread)
					r.Get("/count", rt.notificationHandler.CountUnread)
					r.Post("/read-all", rt.notificationHandler.MarkAllRead)
					r.Post("/{id}/read", rt.notificationHandler.MarkRead)
					r.Get("/preferences", rt.notificationHandler.GetPreferences)
					r.Put("/preferences", rt.notificationHandler.UpdatePreferences)
					r.Post("/test", rt.notificationHandler.SendTest)
					r.Post("/fcm-token", rt.notificationHandler.RegisterFCMToken)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Post("/alerts", rt.alertHandler.Send)
				r.Post("/notifications/cleanup", rt.alertHandler.Cleanup)
			})
		})
	})

	return r
}
