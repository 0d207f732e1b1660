package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUserIDLength is the maximum length for user IDs in logs
	MaxUserIDLength = 128
	// MaxOriginLength is the maximum length for Origin/Referer values in logs
	MaxOriginLength = 256
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
)

// SanitizePath sanitizes a URL path for safe logging: validates UTF-8,
// strips control characters, and truncates to MaxPathLength.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeUserID sanitizes a user id for safe logging. User ids come from
// request bodies and cookies, so they are attacker-controlled.
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeOrigin sanitizes an Origin or Referer header value for safe logging.
func SanitizeOrigin(origin string) string {
	return SanitizeString(origin, MaxOriginLength)
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeString sanitizes a general string for safe logging
// Removes control characters, truncates to maxLength, and validates UTF-8
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// filterRunes validates UTF-8 and removes control characters (keeps printable, space, tab, newline, CR).
func filterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
