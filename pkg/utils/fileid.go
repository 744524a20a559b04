package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateFileID creates a short, globally-unique identifier used as the
// leading path segment for an uploaded artifact: <data>/print_files/<file_id>_<sanitized_name>.
func GenerateFileID() string {
	return generateShortUUID()
}

// generateShortUUID creates an 8-character hex string from a UUID. This
// provides sufficient uniqueness while keeping file IDs compact.
func generateShortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// SanitizeFilename reduces name to the storage-path-safe character set
// [A-Za-z0-9._-], replacing everything else with "_", and strips any
// directory component so a name carrying ".." or an absolute path can never
// escape the artifact storage directory.
func SanitizeFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	sanitized := b.String()
	// Base alone can't contain a path separator, but ".." survives char
	// filtering (all three runes are in the allowed set) and must be
	// defused on its own, not just as a traversal-via-separator trick.
	sanitized = strings.ReplaceAll(sanitized, "..", "__")
	if sanitized == "" {
		sanitized = "upload"
	}
	return sanitized
}
