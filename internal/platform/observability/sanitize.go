package observability

import (
	"strings"
	"unicode"
)

const (
	maxRouteLength  = 180
	maxMethodLength = 10
	maxIDLength     = 64
	maxValueLength  = 256
)

// sanitizeString drops control characters and truncates to limit runes so request data cannot
// forge log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = maxValueLength
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(cleaned); len(runes) > limit {
		cleaned = string(runes[:limit])
	}
	return cleaned
}

// SanitizeRoute cleans a chi route pattern or raw path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, maxRouteLength)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return strings.ToUpper(sanitizeString(method, maxMethodLength))
}

// SanitizeID bounds caller-supplied identifiers such as user ids and request ids.
func SanitizeID(id string) string {
	return sanitizeString(strings.TrimSpace(id), maxIDLength)
}
