// package payload provides types for constructing the payload of an APNs notification.
package payload

import "unicode/utf8"

// sizeOfJSONEscapedRune returns the number of bytes a single rune contributes
// to a JSON string literal once the escaping rules used by appendQuote (see
// alert_marshal.go) are applied, not counting the surrounding quotes.
// Builder.Build uses it to measure how many bytes trimming one rune off the
// end of the alert body actually saves.
func sizeOfJSONEscapedRune(r rune) int {
	switch {
	case r == '"' || r == '\\':
		return 2
	case r >= 0 && r <= 0x1F:
		return 6 // \u00XX
	default:
		return utf8.RuneLen(r)
	}
}
