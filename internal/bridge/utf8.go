package bridge

import (
	"strings"
	"unicode/utf8"
)

// maxCarry bounds the continuation buffer between reads. No UTF-8 sequence
// is longer than utf8.UTFMax, so anything bigger is garbage, not a rune in
// progress.
const maxCarry = utf8.UTFMax

// splitTrailingPartial splits p so that complete never ends in the middle
// of a multi-byte sequence. partial holds at most three trailing bytes of
// an unfinished rune; invalid sequences are left in complete for the
// sanitizer to replace.
func splitTrailingPartial(p []byte) (complete, partial []byte) {
	n := len(p)
	if n == 0 || p[n-1] < utf8.RuneSelf {
		return p, nil
	}
	start := n - 1
	for back := 0; back < utf8.UTFMax-1 && start > 0; back++ {
		if p[start]&0xC0 != 0x80 {
			break
		}
		start--
	}
	if p[start]&0xC0 == 0x80 {
		// Continuation bytes with no start byte in range: not a rune in
		// progress.
		return p, nil
	}
	want := seqLen(p[start])
	if want <= 0 || n-start >= want {
		return p, nil
	}
	return p[:start], p[start:]
}

// seqLen returns the expected sequence length for a UTF-8 start byte, or -1
// if b cannot start a sequence.
func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return -1
	}
}

// sanitizeText converts raw PTY bytes into valid UTF-8 for a text frame.
// Browsers drop the connection on invalid text frames, so undecodable
// bytes become U+FFFD instead of passing through.
func sanitizeText(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return strings.ToValidUTF8(string(p), string(utf8.RuneError))
}
