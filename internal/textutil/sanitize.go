package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var separatorReplacer = strings.NewReplacer("/", " ", "\\", " ")

// SecureFileName reduces an untrusted file name to a safe ASCII base name.
// Accents are folded, path separators and whitespace runs become single
// underscores, and anything outside [A-Za-z0-9_.-] is dropped. Leading and
// trailing dots and underscores are trimmed, so the result may be empty.
func SecureFileName(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	folded = separatorReplacer.Replace(folded)
	folded = strings.Join(strings.Fields(folded), "_")

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// IsPlainFileName reports whether name is a bare file name with no directory
// components, traversal, or leading dot.
func IsPlainFileName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}
