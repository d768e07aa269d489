package validator

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)
	otpRegex      = regexp.MustCompile(`^\d{6}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// ValidatePhone validates a phone number
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(CleanPhone(phone))
}

// CleanPhone removes spaces and dashes from a phone number
func CleanPhone(phone string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	return strings.ReplaceAll(cleaned, "-", "")
}

// ValidateUsername checks length and allowed characters
func ValidateUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// ValidateOTP checks that code is six digits
func ValidateOTP(code string) bool {
	return otpRegex.MatchString(strings.TrimSpace(code))
}

// ValidatePercent checks that v is a usable alert threshold
func ValidatePercent(v int) bool {
	return v >= 1 && v <= 100
}

// ValidatePassword validates password strength
func ValidatePassword(password string) ValidationErrors {
	var errors ValidationErrors

	if len(password) < 8 {
		errors.Add("password", "must be at least 8 characters")
		return errors
	}

	var hasLetter, hasNumber bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasNumber = true
		}
	}

	if !hasLetter {
		errors.Add("password", "must contain at least one letter")
	}
	if !hasNumber {
		errors.Add("password", "must contain at least one number")
	}

	return errors
}

// SanitizeString trims whitespace and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

// SanitizeEmail normalizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
