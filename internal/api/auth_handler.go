package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/domain"
	"github.com/ispcare/backend/internal/middleware"
	"github.com/ispcare/backend/pkg/response"
	"github.com/ispcare/backend/pkg/validator"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService      *domain.AuthService
	allowAdminSignup bool
	logger           *zap.Logger
}

// NewAuthHandler creates a new auth handler. Unless allowAdminSignup is set,
// public registration only creates customer accounts.
func NewAuthHandler(authService *domain.AuthService, allowAdminSignup bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		allowAdminSignup: allowAdminSignup,
		logger:           logger,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest represents the login request body. Login accepts a username or an email.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var errs validator.ValidationErrors
	req.Email = validator.SanitizeEmail(req.Email)
	if !validator.ValidateEmail(req.Email) {
		errs.Add("email", "invalid email address")
	}
	if !validator.ValidateUsername(req.Username) {
		errs.Add("username", "must be 3-32 letters, digits, '.', '_' or '-'")
	}
	errs = append(errs, validator.ValidatePassword(req.Password)...)
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		errs.Add("role", "must be ADMIN or CUSTOMER")
	} else if role == domain.RoleAdmin && !h.allowAdminSignup {
		errs.Add("role", "admin accounts cannot be self-registered")
	}
	if errs.HasErrors() {
		response.ValidationFailed(w, errs)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		writeError(w, h.logger, err, "registration failed")
		return
	}

	response.Created(w, user.ToResponse())
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Login == "" || req.Password == "" {
		response.BadRequest(w, "login and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, h.logger, err, "login failed")
		return
	}

	response.OK(w, result)
}

// Logout ends the current session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.GetToken(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	if err := h.authService.Logout(r.Context(), token); err != nil {
		writeError(w, h.logger, err, "logout failed")
		return
	}

	response.OK(w, map[string]string{"message": "logged out"})
}

// Me returns the current user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "failed to get user")
		return
	}

	response.OK(w, user.ToResponse())
}

// ForgotPassword emails a password reset code
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Email = validator.SanitizeEmail(req.Email)
	if !validator.ValidateEmail(req.Email) {
		response.BadRequest(w, "invalid email address")
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err, "failed to send OTP")
		return
	}

	response.OK(w, map[string]string{"message": "OTP sent to your email"})
}

// ResetPassword checks the reset code and sets a new password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var errs validator.ValidationErrors
	req.Email = validator.SanitizeEmail(req.Email)
	if !validator.ValidateEmail(req.Email) {
		errs.Add("email", "invalid email address")
	}
	if !validator.ValidateOTP(req.OTP) {
		errs.Add("otp", "must be 6 digits")
	}
	for _, e := range validator.ValidatePassword(req.NewPassword) {
		errs.Add("new_password", e.Message)
	}
	if errs.HasErrors() {
		response.ValidationFailed(w, errs)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		writeError(w, h.logger, err, "failed to reset password")
		return
	}

	response.OK(w, map[string]string{"message": "Password reset successful"})
}
