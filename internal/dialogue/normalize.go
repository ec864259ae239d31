package dialogue

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var registrationPattern = regexp.MustCompile(`^0\d{5}$`)

// fold lowercases s and strips accents and surrounding punctuation so
// keywords match however they are typed ("Não!" == "nao").
func fold(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		out = lower
	}
	return strings.Trim(out, " .!?,;")
}

func oneOf(kw string, words ...string) bool {
	for _, w := range words {
		if kw == w {
			return true
		}
	}
	return false
}

func isYes(kw string) bool    { return oneOf(kw, "1", "sim", "s", "yes", "y") }
func isNo(kw string) bool     { return oneOf(kw, "2", "nao", "n", "no") }
func isHelp(kw string) bool   { return oneOf(kw, "ajuda", "help") }
func isCancel(kw string) bool { return oneOf(kw, "cancelar", "cancel") }
func isBack(kw string) bool   { return oneOf(kw, "0", "voltar", "back") }
