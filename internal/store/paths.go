package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// SanitizeOwnerKey maps an owner identity (email or subject id) to a
// directory-safe segment: every rune outside [A-Za-z0-9.-] becomes an
// underscore, so "alice@example.com" becomes "alice_example.com".
func SanitizeOwnerKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "user"
	}
	return out
}

// SanitizeTitle maps a document title to a filename segment: runes
// outside [A-Za-z0-9 -] are stripped, then internal whitespace runs
// collapse to single underscores.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return "untitled"
	}
	return strings.Join(fields, "_")
}

// DocumentPath derives the deterministic storage path for a document:
// {root}/{owner}/documents/{YYYY}/{MM}/{unixMs}_{kind}_{title}.{format}.
// The millisecond timestamp keeps concurrent saves collision-free.
func DocumentPath(root, ownerKey, kind, title, format string, now time.Time) string {
	name := fmt.Sprintf("%d_%s_%s.%s", now.UnixMilli(), kind, SanitizeTitle(title), format)
	return filepath.Join(root, SanitizeOwnerKey(ownerKey), "documents", now.Format("2006"), now.Format("01"), name)
}
