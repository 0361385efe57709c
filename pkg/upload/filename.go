package upload

import "strings"

const (
	defaultFilename = "upload"
	maxFilenameLen  = 255
)

func allowedFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// SanitizeFilename normalizes a client-supplied filename for use in a
// storage key: runs of disallowed characters collapse to a single "_",
// leading and trailing dots and spaces are stripped, the result is
// capped at 255 characters and never empty.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	inRun := false
	for _, r := range name {
		if allowedFilenameRune(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	sanitized := strings.Trim(b.String(), ". _")
	if sanitized == "" {
		sanitized = defaultFilename
	}
	if len(sanitized) > maxFilenameLen {
		sanitized = sanitized[:maxFilenameLen]
	}
	return sanitized
}
