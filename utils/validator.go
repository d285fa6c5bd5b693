// utils/validator.go - Input validation
package utils

import (
	"strings"
	"unicode"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > maxPasswordBytes {
		return false, "Password must be at most 72 bytes"
	}
	if strings.TrimSpace(password) == "" {
		return false, "Password must not be blank"
	}

	return true, ""
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove null bytes and other control characters, keep line breaks and tabs
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	// Remove leading/trailing spaces
	return strings.TrimSpace(input)
}
