package storage

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const maxSlugLength = 80

// FileName derives the stored name for a child's upload:
// slug(childName) + "_" + slug(email) + extension. The same inputs always
// produce the same name, so a re-upload replaces the earlier file.
func FileName(childName, email, originalName string) string {
	return Slug(childName) + "_" + Slug(email) + Extension(originalName)
}

// Slug case-folds s and keeps letters, digits, combining marks, '@' and '.'
// in any script; runs of anything else collapse to a single '-'. The result
// is at most maxSlugLength runes.
func Slug(s string) string {
	folded := cases.Fold().String(strings.TrimSpace(s))
	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '@', r == '.':
			b.WriteRune(r)
			dash = false
		case unicode.Is(unicode.M, r) && b.Len() > 0 && !dash:
			b.WriteRune(r)
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if runes := []rune(out); len(runes) > maxSlugLength {
		out = strings.Trim(string(runes[:maxSlugLength]), "-.")
	}
	if out == "" {
		return "unknown"
	}
	return out
}

// Extension returns the lower-cased extension of name when it is short and
// alphanumeric, otherwise "".
func Extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
