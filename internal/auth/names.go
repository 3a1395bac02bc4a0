package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NameFromEmail derives a display name from the local part of an email:
// "jane.doe_smith@x.com" becomes "Jane Doe Smith". An address without a local
// part yields the input unchanged.
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_'
	})
	if len(words) == 0 {
		return email
	}
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
