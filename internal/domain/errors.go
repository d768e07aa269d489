package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session has expired")
	ErrPreferencesNotFound  = errors.New("notification preferences not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidCategory      = errors.New("invalid notification category")
	ErrInvalidPriority      = errors.New("invalid notification priority")

	// OTP verification failures, each surfaced to the caller with its own message.
	ErrNoOTPFound  = errors.New("no OTP found, please request a new one")
	ErrOTPExpired  = errors.New("OTP has expired, please request a new one")
	ErrOTPMismatch = errors.New("invalid OTP, please try again")
)
