package utils

import (
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var nonFilenameChars = regexp.MustCompile(`[^\w.-]`) // Anything outside word chars, dot, dash
var consecutiveUnderscores = regexp.MustCompile(`_+`)

const maxFilenameLength = 100

// SanitizeFilename cleans a string to be safe for use as a filename component.
// Used for the per-record export files, where the component comes from the
// last path segment of a regulation URL.
func SanitizeFilename(name string) string {
	sanitized := nonFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
		sanitized = strings.Trim(sanitized, "_ ")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}
