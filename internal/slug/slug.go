// Package slug builds URL-safe identifiers and human-readable titles.
package slug

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = regexp.MustCompile(`[\t :!"#$%&'()*\-/<=>?@\[\\\]^_` + "`" + `{|},.]+`)

// Letters without a canonical decomposition that still have a common ASCII
// spelling.
var ligatures = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "đ", "d", "Đ", "D", "ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH", "ð", "d", "Ð", "D", "ı", "i",
	"‘", "", "’", "", "“", "", "”", "",
)

var asciiFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Make returns an ASCII-only slug for text: transliterated, lowercased,
// punctuation stripped, words joined by "-".
func Make(text string) string {
	return MakeWith(text, "-", 0)
}

// MakeWith is Make with a custom delimiter and an optional length limit
// (0 means unlimited).
func MakeWith(text, delimiter string, limit int) string {
	var words []string
	for _, word := range punctuation.Split(strings.ToLower(ASCII(text)), -1) {
		if word != "" {
			words = append(words, word)
		}
	}
	s := strings.Join(words, delimiter)
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// ASCII transliterates s to its closest ASCII spelling. Accented Latin
// letters fold to their base letter; other scripts are romanised and
// characters with no spelling at all are dropped.
func ASCII(s string) string {
	s = ligatures.Replace(s)
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			return -1
		}
		return r
	}, unidecode.Unidecode(s))
}

// TitleFromFilename derives a display title from a file name: the extension
// is dropped, dashes and underscores become spaces and each word is
// capitalised.
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(base)
}
