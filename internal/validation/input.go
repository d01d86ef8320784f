package validation

import (
	"fmt"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSessionID validates session ID format
func ValidateSessionID(id string) error {
	if len(id) == 0 || len(id) > 64 {
		return fmt.Errorf("session ID must be 1-64 characters")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("session ID can only contain alphanumeric characters, hyphens, and underscores")
	}
	return nil
}

// ValidateContentID validates scenario content ids (calls, responses,
// flags) arriving from the client.
func ValidateContentID(id string) error {
	if len(id) == 0 || len(id) > 128 {
		return fmt.Errorf("content ID must be 1-128 characters")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("content ID can only contain alphanumeric characters, hyphens, and underscores")
	}
	return nil
}

// ValidateMinutes validates a debug time value
func ValidateMinutes(minutes int) error {
	if minutes < 0 || minutes > 10080 {
		return fmt.Errorf("minutes must be between 0 and 10080")
	}
	return nil
}
