package tokenizer

import (
	"fmt"
	"strings"
)

// byteToRune maps every byte to a printable rune so arbitrary input can be
// merged as text. Printable latin-1 bytes map to themselves; the rest are
// shifted into the 0x100 block.
var byteToRune [256]rune

// runeToByte is the inverse of byteToRune.
var runeToByte map[rune]byte

// byteEscapes holds the <0xXX> token for every byte.
var byteEscapes [256]string

func init() {
	runeToByte = make(map[rune]byte, 256)
	for b := range 256 {
		r := rune(b)
		switch {
		case r == 0x00ad:
			r = 0x0143
		case r <= 0x0020:
			r = r + 0x0100
		case r >= 0x007f && r <= 0x00a0:
			r = r + 0x00a2
		}

		byteToRune[b] = r
		runeToByte[r] = byte(b)
		byteEscapes[b] = fmt.Sprintf("<0x%02X>", b)
	}
}

// encodeBytes returns s with each raw byte replaced by its printable rune.
func encodeBytes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for i := range len(s) {
		sb.WriteRune(byteToRune[s[i]])
	}
	return sb.String()
}

// decodeBytes reverses encodeBytes. Runes outside the table are written as
// their UTF-8 encoding.
func decodeBytes(sb *strings.Builder, s string) {
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			sb.WriteByte(b)
			continue
		}
		sb.WriteRune(r)
	}
}

// parseByteEscape reports whether token has the form <0xXX> and returns the
// byte it names.
func parseByteEscape(token string) (byte, bool) {
	if len(token) != 6 || !strings.HasPrefix(token, "<0x") || token[5] != '>' {
		return 0, false
	}

	var b byte
	for _, c := range token[3:5] {
		b <<= 4
		switch {
		case c >= '0' && c <= '9':
			b |= byte(c - '0')
		case c >= 'A' && c <= 'F':
			b |= byte(c-'A') + 10
		case c >= 'a' && c <= 'f':
			b |= byte(c-'a') + 10
		default:
			return 0, false
		}
	}
	return b, true
}
