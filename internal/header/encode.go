// Package header encodes header values for transport in 7-bit message headers.
package header

import "encoding/base64"

const (
	encodedWordPrefix = "=?UTF-8?B?"
	encodedWordSuffix = "?="
)

// Encode returns text as a single RFC 2047 "B" encoded word when it contains
// any byte outside 7-bit ASCII. ASCII-only text is returned unchanged.
func Encode(text string) string {
	if !NeedsEncoding(text) {
		return text
	}
	return encodedWordPrefix + base64.StdEncoding.EncodeToString([]byte(text)) + encodedWordSuffix
}

// NeedsEncoding reports whether text contains a byte above 0x7F.
func NeedsEncoding(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] > 0x7F {
			return true
		}
	}
	return false
}
