package tokenizer

import (
	"iter"
	"slices"
	"unicode/utf8"
)

// Trie is a character trie over vocabulary tokens. Each node that ends a
// token stores that token's id.
type Trie struct {
	root trieNode
	size int
}

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
	id       int32
}

func (t *Trie) Insert(token string, id int32) {
	n := &t.root
	for _, r := range token {
		if n.children == nil {
			n.children = make(map[rune]*trieNode)
		}

		child, ok := n.children[r]
		if !ok {
			child = &trieNode{}
			n.children[r] = child
		}
		n = child
	}

	if !n.terminal {
		t.size++
	}
	n.terminal = true
	n.id = id
}

// Len returns the number of tokens stored.
func (t *Trie) Len() int {
	return t.size
}

// CommonPrefixSearch yields every stored token that is a prefix of s,
// shortest first. The sequence is lazy and may be iterated more than once.
func (t *Trie) CommonPrefixSearch(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		n := &t.root
		for end := 0; end < len(s); {
			r, size := utf8.DecodeRuneInString(s[end:])
			if n = n.children[r]; n == nil {
				return
			}

			end += size
			if n.terminal && !yield(s[:end]) {
				return
			}
		}
	}
}

// CommonPrefixSearchRunes is CommonPrefixSearch over a rune slice. Yielded
// slices alias runes.
func (t *Trie) CommonPrefixSearchRunes(runes []rune) iter.Seq[[]rune] {
	return func(yield func([]rune) bool) {
		for n := range t.prefixes(runes) {
			if !yield(runes[:n]) {
				return
			}
		}
	}
}

// prefixes yields the rune length and id of every stored token that prefixes
// runes.
func (t *Trie) prefixes(runes []rune) iter.Seq2[int, int32] {
	return func(yield func(int, int32) bool) {
		n := &t.root
		for i, r := range runes {
			if n = n.children[r]; n == nil {
				return
			}

			if n.terminal && !yield(i+1, n.id) {
				return
			}
		}
	}
}

// trieEntry is one terminal node in a trie walk.
type trieEntry struct {
	Token string `cbor:"t"`
	ID    int32  `cbor:"i"`
}

// entries walks the trie depth first in rune order. The result is a
// canonical listing of the trie contents.
func (t *Trie) entries() []trieEntry {
	entries := make([]trieEntry, 0, t.size)
	var walk func(n *trieNode, prefix []rune)
	walk = func(n *trieNode, prefix []rune) {
		if n.terminal {
			entries = append(entries, trieEntry{Token: string(prefix), ID: n.id})
		}

		keys := make([]rune, 0, len(n.children))
		for r := range n.children {
			keys = append(keys, r)
		}
		slices.Sort(keys)

		for _, r := range keys {
			walk(n.children[r], append(prefix, r))
		}
	}
	walk(&t.root, nil)
	return entries
}
