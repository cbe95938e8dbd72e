// Package chunker splits serialized payloads into bounded chunks for
// size-limited key/value backends and joins them back.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the per-value ceiling of the chunked KV backend (1 MB on
// the free and pay-as-you-go plans).
const DefaultMaxSize = 1000 * 1000

// Split cuts payload into consecutive pieces of exactly maxSize bytes; the
// last piece may be shorter. An empty payload yields no pieces. A
// non-positive maxSize falls back to DefaultMaxSize.
func Split(payload string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(payload) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(payload)+maxSize-1)/maxSize)
	for len(payload) > maxSize {
		chunks = append(chunks, payload[:maxSize])
		payload = payload[maxSize:]
	}
	return append(chunks, payload)
}

// SplitUTF8 is Split, except a cut never lands inside a multi-byte rune, so
// every piece is valid UTF-8 when payload is. Pieces may fall up to three
// bytes short of maxSize. If maxSize is smaller than the leading rune, that
// rune is emitted whole.
func SplitUTF8(payload string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(payload) == 0 {
		return nil
	}

	var chunks []string
	for len(payload) > maxSize {
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(payload[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(payload)
		}
		chunks = append(chunks, payload[:cut])
		payload = payload[cut:]
	}
	return append(chunks, payload)
}

// Join concatenates chunks in order.
func Join(chunks []string) string {
	return strings.Join(chunks, "")
}
