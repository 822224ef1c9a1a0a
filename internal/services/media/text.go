package media

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fold lower-cases s after NFKC so stylised titles ("Ｏｆｆｉｃｉａｌ Ａｕｄｉｏ")
// match the plain lexical tables.
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
