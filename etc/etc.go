package etc

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func NewFreshID() string {
	return uuid.NewString()
}

// SafeFilename reduces an uploaded file name to a single path element that
// is safe to join onto a directory.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// WordCount splits on runs of whitespace.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
