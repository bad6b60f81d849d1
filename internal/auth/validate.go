package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordChars = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field-level problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks register/login input and returns the
// normalized email.
func ValidateCredentials(email, password string) (string, error) {
	verr := &ValidationError{}
	email = NormalizeEmail(email)
	if msg := checkEmail(email); msg != "" {
		verr.add("email", msg)
	}
	switch {
	case utf8.RuneCountInString(password) < minPasswordChars:
		verr.add("password", fmt.Sprintf("must be at least %d characters", minPasswordChars))
	case len(password) > maxPasswordBytes:
		verr.add("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return email, verr.errOrNil()
}

// ValidateRefreshRequest rejects an absent refresh token.
func ValidateRefreshRequest(token string) error {
	verr := &ValidationError{}
	if strings.TrimSpace(token) == "" {
		verr.add("refreshToken", "is required")
	}
	return verr.errOrNil()
}

func checkEmail(email string) string {
	if email == "" {
		return "is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "must be a valid email address"
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if at <= 0 || !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "must be a valid email address"
	}
	return ""
}
