package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ispcare/backend/internal/auth"
)

var ErrAccountDisabled = errors.New("account is disabled")

// AuthService handles authentication business logic
type AuthService struct {
	repo     UserRepository
	sessions *SessionManager
	otps     *OTPManager
	email    EmailSender
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(repo UserRepository, sessions *SessionManager, otps *OTPManager, email EmailSender, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		sessions: sessions,
		otps:     otps,
		email:    email,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new user and sends a welcome email
func (s *AuthService) Register(ctx context.Context, username, email, password string, role Role) (*User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)

	exists, err := s.repo.UserExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("username already exists: %w", ErrUserAlreadyExists)
	}
	exists, err = s.repo.UserExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("email already exists: %w", ErrUserAlreadyExists)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	body := "Welcome Customer! Your account has been created. Start managing your devices and plans."
	if role == RoleAdmin {
		body = "Welcome Admin! Your account has been created. Username: " + username
	}
	s.sendBestEffort(ctx, email, "Welcome to ISP Management System", body)

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

// LoginResult represents the result of login
type LoginResult struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// Login authenticates a user by username or email and opens a session
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	user, err := s.findByLogin(ctx, strings.TrimSpace(usernameOrEmail))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hash, err := s.repo.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(password, hash); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:  user.ToResponse(),
		Token: token,
	}, nil
}

func (s *AuthService) findByLogin(ctx context.Context, usernameOrEmail string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, usernameOrEmail)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return s.repo.GetUserByEmail(ctx, normalizeEmail(usernameOrEmail))
}

// Logout ends the session behind token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Authenticate resolves a session token to its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*User, error) {
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = s.sessions.Destroy(ctx, token)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ForgotPassword issues a reset code and emails it to the account owner
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	code, err := s.otps.Issue(ctx, user.Email)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`Hello %s,

Your OTP for password reset is: %s

This OTP will expire in %d minutes.
If you did not request this, please ignore this email.

Best regards,
ISP Management Team`, user.Username, code, int(s.otps.TTL().Minutes()))

	if err := s.email.SendEmail(ctx, user.Email, "Password Reset OTP - ISP Management", body); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	s.logger.Info("password reset otp issued", zap.String("user_id", user.ID.String()))
	return nil
}

// ResetPassword verifies a reset code and replaces the user's password
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	if err := s.otps.Verify(ctx, user.Email, code); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, user.ID, passwordHash); err != nil {
		return err
	}

	body := fmt.Sprintf(`Hello %s,

Your password has been successfully reset.
You can now login with your new password.

If you did not make this change, please contact support immediately.

Best regards,
ISP Management Team`, user.Username)
	s.sendBestEffort(ctx, user.Email, "Password Reset Successful - ISP Management", body)

	s.logger.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *AuthService) sendBestEffort(ctx context.Context, to, subject, body string) {
	if s.email == nil {
		return
	}
	if err := s.email.SendEmail(ctx, to, subject, body); err != nil {
		s.logger.Warn("failed to send email", zap.String("subject", subject), zap.Error(err))
	}
}
