package utils

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// EscapeHTML escapes the characters that can open markup or break out of an
// attribute, including '/'.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
