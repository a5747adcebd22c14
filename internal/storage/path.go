package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const maxExtLen = 10

// newSuffix is swapped in tests to make paths predictable.
var newSuffix = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// BuildPath returns the object key for a new upload:
// documents/<owner>/<yyyy>/<mm>/<unix-ms>-<random><ext>.
// The owner and time bucket keep keys browsable; the random suffix makes them collision resistant.
func BuildPath(ownerID string, now time.Time, originalName string) string {
	now = now.UTC()
	return fmt.Sprintf("documents/%s/%04d/%02d/%d-%s%s",
		sanitizeSegment(ownerID),
		now.Year(), int(now.Month()),
		now.UnixMilli(), newSuffix(),
		extension(originalName),
	)
}

// JoinURL joins a base URL with escaped path segments.
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, seg := range segments {
		for _, part := range strings.Split(seg, "/") {
			if part == "" {
				continue
			}
			b.WriteByte('/')
			b.WriteString(escapeSegment(part))
		}
	}
	return b.String()
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return ""
		}
	}
	return ext
}

func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
