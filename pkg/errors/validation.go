package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateTarget validates a page target (bare domain or URL) before it is
// handed to the capture collaborator.
//
// Validation rules:
//   - Target cannot be empty (after trimming)
//   - Maximum length of 2048 characters
//   - No control characters or whitespace inside
//   - If a scheme is present it must be http or https
func ValidateTarget(target string) error {
	s := strings.TrimSpace(target)
	if s == "" {
		return New(ErrCodeInvalidInput, "target cannot be empty")
	}

	const maxTargetLength = 2048
	if len(s) > maxTargetLength {
		return New(ErrCodeInvalidInput, "target too long (max %d characters)", maxTargetLength)
	}

	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "target contains invalid characters: %q", target)
		}
	}

	if strings.Contains(s, "://") {
		return ValidateURL(s)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// elementIDRegex matches identifiers usable both as an SVG id and inside url(#...).
var elementIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidateElementID validates a placeholder region id.
func ValidateElementID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidConfig, "element id cannot be empty")
	}
	if !elementIDRegex.MatchString(id) {
		return New(ErrCodeInvalidConfig, "invalid element id: %q", id)
	}
	return nil
}
