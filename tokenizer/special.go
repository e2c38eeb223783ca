package tokenizer

import (
	"slices"
	"strings"
	"unicode"
)

// fragment is a piece of input that is either an added token or plain text
// still to be tokenized by the model.
type fragment struct {
	value string
	added bool
}

// splitAddedTokens splits s around occurrences of added tokens. Tokens are
// processed in the order given, which is longest first, so an added token
// never claims part of a longer one. lstrip and rstrip tokens absorb the
// whitespace on their left and right.
func splitAddedTokens(s string, added []AddedToken) []fragment {
	fragments := []fragment{{value: s}}
	for _, token := range added {
		if token.Content == "" || !strings.Contains(s, token.Content) {
			continue
		}

		for i := 0; i < len(fragments); i++ {
			frag := fragments[i]
			if frag.added {
				continue
			}

			idx := strings.Index(frag.value, token.Content)
			if idx < 0 {
				continue
			}

			left, rest := frag.value[:idx], frag.value[idx+len(token.Content):]
			if token.LStrip {
				left = strings.TrimRightFunc(left, unicode.IsSpace)
			}
			if token.RStrip {
				rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			}

			var middle []fragment
			if left != "" {
				middle = append(middle, fragment{value: left})
			}
			middle = append(middle, fragment{value: token.Content, added: true})
			if rest != "" {
				middle = append(middle, fragment{value: rest})
			}

			fragments = slices.Replace(fragments, i, i+1, middle...)
		}
	}

	return fragments
}
