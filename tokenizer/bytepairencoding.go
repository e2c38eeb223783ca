package tokenizer

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/jmorganca/subword/logutil"
)

// defaultPretokenizer is the GPT-2 byte-level split pattern. Whitespace
// followed by a non-space character leaves its last character to prefix the
// next chunk.
const defaultPretokenizer = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

type BytePairEncoding struct {
	vocab *Vocabulary
	ranks *Ranks

	pattern      string
	pretokenizer *regexp2.Regexp
}

var _ Tokenizer = (*BytePairEncoding)(nil)

// NewBytePairEncoding builds a BPE tokenizer from src.
func NewBytePairEncoding(ctx context.Context, src Source, opts BuildOptions) (*BytePairEncoding, error) {
	start := time.Now()

	pattern := cmp.Or(src.Pretokenizer, defaultPretokenizer)
	re, err := regexp2.Compile(pattern, regexp2.Unicode)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pretokenizer %q: %w", pattern, err)
	}

	var (
		ids    map[string]int32
		merges [][2]string
	)

	if err := opts.phase(ctx,
		func() (err error) {
			ids, err = baseIDs(src.Vocab, src.Added)
			return err
		},
		func() (err error) {
			merges, err = parseMerges(src.Merges)
			return err
		},
	); err != nil {
		return nil, err
	}

	var (
		values     []string
		ranks      *Ranks
		normalized map[string]int32
	)

	if err := opts.phase(ctx,
		func() (err error) {
			values, err = inverseIDs(ids)
			return err
		},
		func() error {
			ranks = buildRanks(merges, ids)
			return nil
		},
		func() error {
			normalized = normalizedIDs(ids)
			return nil
		},
	); err != nil {
		return nil, err
	}

	bpe := &BytePairEncoding{
		vocab:        newVocabulary(values, ids, normalized, src),
		ranks:        ranks,
		pattern:      pattern,
		pretokenizer: re,
	}

	slog.Debug("built tokenizer", "type", TypeBPE, "vocab", len(values), "merges", ranks.Len(),
		"skipped", len(merges)-ranks.Len(), "sequential", opts.Sequential, "elapsed", time.Since(start))
	return bpe, nil
}

func newVocabulary(values []string, ids, normalized map[string]int32, src Source) *Vocabulary {
	addedIDs := make(map[int32]bool, len(src.Added))
	for _, t := range src.Added {
		addedIDs[t.ID] = true
	}

	return &Vocabulary{
		values:     values,
		ids:        ids,
		normalized: normalized,
		added:      sortAdded(src.Added),
		addedIDs:   addedIDs,
		specials: resolveSpecials(ids, map[Special]string{
			SpecialBOS: src.BOS,
			SpecialEOS: src.EOS,
			SpecialUNK: src.UNK,
		}),
	}
}

func (bpe *BytePairEncoding) Type() string {
	return TypeBPE
}

func (bpe *BytePairEncoding) Vocabulary() *Vocabulary {
	return bpe.vocab
}

// Ranks returns the merge priority table.
func (bpe *BytePairEncoding) Ranks() *Ranks {
	return bpe.ranks
}

func (bpe *BytePairEncoding) TokenToID(token string) int32 {
	return bpe.vocab.Encode(token)
}

func (bpe *BytePairEncoding) IDToToken(id int32) (string, bool) {
	return bpe.vocab.Decode(id)
}

// Rank returns the merge rank of the pair (left, right).
func (bpe *BytePairEncoding) Rank(left, right string) (int32, bool) {
	a, ok := bpe.vocab.lookup(left)
	if !ok {
		return 0, false
	}

	b, ok := bpe.vocab.lookup(right)
	if !ok {
		return 0, false
	}

	return bpe.ranks.lookup(a, b)
}

// split yields the pretokenizer chunks of s. Text between matches is
// yielded as its own chunk so no input is dropped. Chunks are slices of s, so
// invalid UTF-8 bytes reach the byte table unchanged.
func (bpe *BytePairEncoding) split(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		// offsets[i] is the byte offset of rune i; an invalid byte is one rune
		runes := make([]rune, 0, len(s))
		offsets := make([]int, 0, len(s)+1)
		for i := 0; i < len(s); {
			r, size := utf8.DecodeRuneInString(s[i:])
			runes = append(runes, r)
			offsets = append(offsets, i)
			i += size
		}
		offsets = append(offsets, len(s))

		var offset int
		for m, _ := bpe.pretokenizer.FindRunesMatch(runes); m != nil; m, _ = bpe.pretokenizer.FindNextMatch(m) {
			if m.Index > offset {
				if !yield(s[offsets[offset]:offsets[m.Index]]) {
					return
				}
			}

			end := m.Index + m.Length
			if !yield(s[offsets[m.Index]:offsets[end]]) {
				return
			}

			offset = end
		}

		if offset < len(runes) {
			yield(s[offsets[offset]:])
		}
	}
}

func (bpe *BytePairEncoding) Tokenize(text string) []string {
	var tokens []string
	for _, frag := range splitAddedTokens(text, bpe.vocab.added) {
		if frag.added {
			tokens = append(tokens, frag.value)
			continue
		}

		for chunk := range bpe.split(frag.value) {
			tokens = bpe.appendChunk(tokens, chunk)
		}
	}

	logutil.Trace("tokenized", "text", text, "tokens", tokens)
	return tokens
}

// symbol is one element of a chunk being merged.
type symbol struct {
	text string
	id   int32
	ok   bool
}

// candidate is an adjacent symbol pair with a merge rank.
type candidate struct {
	pos  int
	rank int32
}

func (bpe *BytePairEncoding) appendChunk(tokens []string, chunk string) []string {
	encoded := encodeBytes(chunk)

	symbols := make([]symbol, 0, len(encoded))
	for _, r := range encoded {
		text := string(r)
		id, ok := bpe.vocab.lookup(text)
		symbols = append(symbols, symbol{text: text, id: id, ok: ok})
	}

	for _, s := range bpe.merge(symbols) {
		if s.ok {
			tokens = append(tokens, bpe.vocab.values[s.id])
			continue
		}

		// no vocabulary entry: emit one escape per raw byte
		for _, r := range s.text {
			if b, ok := runeToByte[r]; ok {
				tokens = append(tokens, byteEscapes[b])
				continue
			}

			for _, b := range []byte(string(r)) {
				tokens = append(tokens, byteEscapes[b])
			}
		}
	}

	return tokens
}

// merge repeatedly applies the lowest ranked merge. Each pass picks the
// leftmost adjacent pair with the minimum rank and merges every
// non-overlapping occurrence of that pair from left to right.
func (bpe *BytePairEncoding) merge(symbols []symbol) []symbol {
	for len(symbols) > 1 {
		pairs := heap.NewWith(func(a, b candidate) int {
			return cmp.Or(cmp.Compare(a.rank, b.rank), cmp.Compare(a.pos, b.pos))
		})

		for i := range len(symbols) - 1 {
			left, right := symbols[i], symbols[i+1]
			if !left.ok || !right.ok {
				continue
			}

			if rank, ok := bpe.ranks.lookup(left.id, right.id); ok {
				pairs.Push(candidate{pos: i, rank: rank})
			}
		}

		best, ok := pairs.Pop()
		if !ok {
			break
		}

		first, second := symbols[best.pos].id, symbols[best.pos+1].id

		var n int
		for i := 0; i < len(symbols); n++ {
			if i+1 < len(symbols) &&
				symbols[i].ok && symbols[i].id == first &&
				symbols[i+1].ok && symbols[i+1].id == second {
				text := symbols[i].text + symbols[i+1].text
				id, ok := bpe.vocab.lookup(text)
				symbols[n] = symbol{text: text, id: id, ok: ok}
				i += 2
				continue
			}

			symbols[n] = symbols[i]
			i++
		}
		symbols = symbols[:n]
	}

	return symbols
}

func (bpe *BytePairEncoding) Detokenize(tokens []string) string {
	var sb strings.Builder
	for _, token := range tokens {
		if bpe.vocab.isAddedToken(token) {
			sb.WriteString(token)
			continue
		}

		if b, ok := parseByteEscape(token); ok {
			sb.WriteByte(b)
			continue
		}

		decodeBytes(&sb, token)
	}

	return sb.String()
}

func (bpe *BytePairEncoding) Encode(text string) []int32 {
	ids := encodeTokens(bpe.vocab, bpe.Tokenize(text))
	logutil.Trace("encoded", "string", text, "ids", ids)
	return ids
}

func (bpe *BytePairEncoding) Decode(ids []int32) (string, error) {
	tokens, err := decodeIDs(bpe.vocab, ids)
	if err != nil {
		return "", err
	}

	s := bpe.Detokenize(tokens)
	logutil.Trace("decoded", "ids", ids, "string", s)
	return s, nil
}
