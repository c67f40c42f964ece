package slug

import (
	"strconv"
	"strings"
	"unicode"
)

// Option configures slug generation.
type Option func(*config)

type config struct {
	separator string
	lowercase bool
}

func defaultConfig() *config {
	return &config{
		separator: "-",
		lowercase: true,
	}
}

// Separator sets the separator string. Default is "-".
func Separator(s string) Option {
	return func(c *config) {
		c.separator = s
	}
}

// Lowercase controls whether the slug is lowercased. Default is true.
func Lowercase(enabled bool) Option {
	return func(c *config) {
		c.lowercase = enabled
	}
}

// Make creates a URL-safe slug from the input string. Runs of characters
// that are neither ASCII alphanumerics nor foldable diacritics collapse to a
// single separator; leading and trailing separators are stripped.
func Make(s string, opts ...Option) string {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var b strings.Builder
	b.Grow(len(s))

	lastWasSep := true // avoid a leading separator
	for _, r := range s {
		if cfg.lowercase {
			r = unicode.ToLower(r)
		}

		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasSep = false
			continue
		}

		if folded, ok := foldDiacritic(r); ok {
			if cfg.lowercase {
				folded = unicode.ToLower(folded)
			}
			b.WriteRune(folded)
			lastWasSep = false
			continue
		}

		if !lastWasSep {
			b.WriteString(cfg.separator)
			lastWasSep = true
		}
	}

	return strings.TrimSuffix(b.String(), cfg.separator)
}

// TruncateWords shortens a slug to at most maxLen runes by dropping trailing
// separator-delimited words. A single word longer than maxLen is cut at
// maxLen. maxLen <= 0 means no limit.
func TruncateWords(s string, maxLen int, opts ...Option) string {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if maxLen <= 0 {
		return s
	}
	for len([]rune(s)) > maxLen {
		idx := strings.LastIndex(s, cfg.separator)
		if idx <= 0 {
			runes := []rune(s)
			return string(runes[:maxLen])
		}
		s = s[:idx]
	}
	return s
}

// NumberSuffix appends "-n" to base, truncating base first when the result
// would exceed maxLen runes. maxLen <= 0 means no limit.
func NumberSuffix(base string, n int, maxLen int, opts ...Option) string {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	suffix := cfg.separator + strconv.Itoa(n)
	candidate := base + suffix
	if maxLen > 0 && len([]rune(candidate)) > maxLen {
		runes := []rune(base)
		keep := maxLen - len([]rune(suffix))
		if keep < 0 {
			keep = 0
		}
		candidate = string(runes[:keep]) + suffix
	}
	return candidate
}

// diacriticMap maps common Latin diacritics to ASCII equivalents.
// Covers major European languages but not exhaustive for all Unicode ranges.
var diacriticMap = map[rune]rune{
	// lowercase a
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a', 'ă': 'a', 'ą': 'a',
	// uppercase A
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A', 'Ā': 'A', 'Ă': 'A', 'Ą': 'A',
	// c/C
	'ç': 'c', 'ć': 'c', 'č': 'c',
	'Ç': 'C', 'Ć': 'C', 'Č': 'C',
	// d/D
	'đ': 'd', 'ď': 'd',
	'Đ': 'D', 'Ď': 'D',
	// e/E
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e', 'ė': 'e', 'ę': 'e', 'ě': 'e',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E', 'Ē': 'E', 'Ė': 'E', 'Ę': 'E', 'Ě': 'E',
	// i/I
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i', 'į': 'i',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I', 'Ī': 'I', 'Į': 'I',
	// l/L
	'ł': 'l',
	'Ł': 'L',
	// n/N
	'ñ': 'n', 'ń': 'n', 'ň': 'n',
	'Ñ': 'N', 'Ń': 'N', 'Ň': 'N',
	// o/O
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O', 'Ø': 'O', 'Ō': 'O',
	// r/R
	'ř': 'r',
	'Ř': 'R',
	// s/S
	'ś': 's', 'š': 's', 'ș': 's',
	'Ś': 'S', 'Š': 'S', 'Ș': 'S',
	// t/T
	'ť': 't', 'ț': 't',
	'Ť': 'T', 'Ț': 'T',
	// u/U
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u', 'ů': 'u', 'ų': 'u',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ū': 'U', 'Ů': 'U', 'Ų': 'U',
	// y/Y
	'ý': 'y', 'ÿ': 'y',
	'Ý': 'Y', 'Ÿ': 'Y',
	// z/Z
	'ź': 'z', 'ž': 'z', 'ż': 'z',
	'Ź': 'Z', 'Ž': 'Z', 'Ż': 'Z',
	// special characters
	'æ': 'a',
	'Æ': 'A',
	'œ': 'o',
	'Œ': 'O',
	'ß': 's',
}

// foldDiacritic converts a Unicode diacritic to its ASCII equivalent.
// Returns false if the rune is not in the folding table.
func foldDiacritic(r rune) (rune, bool) {
	if folded, ok := diacriticMap[r]; ok {
		return folded, true
	}
	return r, false
}
