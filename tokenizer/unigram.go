package tokenizer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jmorganca/subword/logutil"
)

const (
	unigramWhitespaceSep            = "▁"
	unigramUnknownTokenScorePenalty = 10.0
)

// ScoredToken is a Unigram vocabulary entry.
type ScoredToken struct {
	Token string
	Score float64
}

// Unigram segments text into the vocabulary tokens whose summed log
// probabilities are highest.
type Unigram struct {
	vocab  *Vocabulary
	trie   *Trie
	scores []float64

	unkID    int32
	unkScore float64
	fuseUnk  bool
}

var _ Tokenizer = (*Unigram)(nil)

// NewUnigram builds a Unigram tokenizer from src.
func NewUnigram(ctx context.Context, src Source, opts BuildOptions) (*Unigram, error) {
	start := time.Now()

	var (
		tokens []string
		scores []float64
		ids    map[string]int32
		unkID  int32
	)

	if err := opts.phase(ctx,
		func() (err error) {
			tokens, scores, err = parseScores(src.Vocab)
			if err != nil {
				return err
			}

			ids = unigramIDs(tokens, src.Added)
			return nil
		},
		func() error {
			if src.UnkID == nil {
				return fmt.Errorf("%w: unknown token id is required", ErrMalformedVocabulary)
			}

			id, ok := asID(src.UnkID)
			if !ok {
				return fmt.Errorf("%w: unknown token id %v is not a valid index", ErrMalformedVocabulary, src.UnkID)
			}

			unkID = id
			return nil
		},
	); err != nil {
		return nil, err
	}

	if int(unkID) >= len(tokens) {
		return nil, fmt.Errorf("%w: unknown token id %d out of range [0, %d)", ErrMalformedVocabulary, unkID, len(tokens))
	}

	var (
		values     []string
		trie       *Trie
		normalized map[string]int32
		minScore   float64
	)

	if err := opts.phase(ctx,
		func() (err error) {
			values, err = inverseIDs(ids)
			return err
		},
		func() error {
			trie = buildTrie(tokens, ids)
			return nil
		},
		func() error {
			normalized = normalizedIDs(ids)
			return nil
		},
		func() error {
			minScore = slices.Min(scores)
			return nil
		},
	); err != nil {
		return nil, err
	}

	unkScore := minScore - unigramUnknownTokenScorePenalty
	scores[unkID] = unkScore

	src.UNK = tokens[unkID]
	u := &Unigram{
		vocab:    newVocabulary(values, ids, normalized, src),
		trie:     trie,
		scores:   scores,
		unkID:    unkID,
		unkScore: unkScore,
		fuseUnk:  src.FuseUnk,
	}

	slog.Debug("built tokenizer", "type", TypeUnigram, "vocab", len(values), "trie", trie.Len(),
		"unk", src.UNK, "unk_score", unkScore, "sequential", opts.Sequential, "elapsed", time.Since(start))
	return u, nil
}

// parseScores reads the [token, score] list of a Unigram vocabulary.
func parseScores(raw any) ([]string, []float64, error) {
	var tokens []string
	var scores []float64
	switch raw := raw.(type) {
	case []any:
		tokens = make([]string, len(raw))
		scores = make([]float64, len(raw))
		for i, entry := range raw {
			pair, ok := entry.([]any)
			if !ok || len(pair) != 2 {
				return nil, nil, fmt.Errorf("%w: entry %d is not a [token, score] pair", ErrMalformedVocabulary, i)
			}

			token, ok := pair[0].(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: entry %d has non-string token %v", ErrMalformedVocabulary, i, pair[0])
			}

			score, ok := asFloat(pair[1])
			if !ok {
				return nil, nil, fmt.Errorf("%w: entry %d has non-numeric score %v", ErrMalformedVocabulary, i, pair[1])
			}

			tokens[i], scores[i] = token, score
		}
	case []ScoredToken:
		tokens = make([]string, len(raw))
		scores = make([]float64, len(raw))
		for i, entry := range raw {
			tokens[i], scores[i] = entry.Token, entry.Score
		}
	case nil:
		return nil, nil, ErrMissingVocabulary
	default:
		return nil, nil, fmt.Errorf("%w: expected list of [token, score] pairs, got %T", ErrMissingVocabulary, raw)
	}

	if len(tokens) == 0 {
		return nil, nil, ErrMissingVocabulary
	}

	return tokens, scores, nil
}

// unigramIDs maps each token to its list position. A token listed twice keeps
// its first position.
func unigramIDs(tokens []string, added []AddedToken) map[string]int32 {
	ids := make(map[string]int32, len(tokens)+len(added))
	for i, token := range tokens {
		if _, ok := ids[token]; ok {
			slog.Debug("duplicate vocabulary entry", "token", token, "id", i)
			continue
		}
		ids[token] = int32(i)
	}

	overlayAdded(ids, added)
	return ids
}

// buildTrie inserts every base vocabulary token still owned by its position.
func buildTrie(tokens []string, ids map[string]int32) *Trie {
	var trie Trie
	for i, token := range tokens {
		if id, ok := ids[token]; ok && id == int32(i) {
			trie.Insert(token, id)
		}
	}
	return &trie
}

func (u *Unigram) Type() string {
	return TypeUnigram
}

func (u *Unigram) Vocabulary() *Vocabulary {
	return u.vocab
}

// Trie returns the prefix trie over the vocabulary.
func (u *Unigram) Trie() *Trie {
	return u.trie
}

func (u *Unigram) TokenToID(token string) int32 {
	return u.vocab.Encode(token)
}

func (u *Unigram) IDToToken(id int32) (string, bool) {
	return u.vocab.Decode(id)
}

// Score returns the log probability of id. The unknown token scores below
// every other token.
func (u *Unigram) Score(id int32) (float64, bool) {
	if id < 0 || int(id) >= len(u.scores) {
		return 0, false
	}
	return u.scores[id], true
}

func (u *Unigram) Tokenize(text string) []string {
	var tokens []string
	for _, frag := range splitAddedTokens(text, u.vocab.added) {
		if frag.added {
			tokens = append(tokens, frag.value)
			continue
		}

		tokens = u.appendFragment(tokens, frag.value)
	}

	logutil.Trace("tokenized", "text", text, "tokens", tokens)
	return tokens
}

func (u *Unigram) appendFragment(tokens []string, s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return tokens
	}

	lattice := NewLattice(len(runes))
	for start := range runes {
		var single bool
		for length, id := range u.trie.prefixes(runes[start:]) {
			lattice.Insert(start, length, u.scores[id], id)
			if length == 1 {
				single = true
			}
		}

		if !single {
			lattice.Insert(start, 1, u.unkScore, u.unkID)
		}
	}

	var prevUnknown bool
	for _, id := range lattice.Tokens() {
		unknown := id == u.unkID
		if unknown && prevUnknown && u.fuseUnk {
			continue
		}
		prevUnknown = unknown

		tokens = append(tokens, u.vocab.values[id])
	}

	return tokens
}

func (u *Unigram) Detokenize(tokens []string) string {
	var sb strings.Builder
	for _, token := range tokens {
		if b, ok := parseByteEscape(token); ok && !u.vocab.isAddedToken(token) {
			sb.WriteByte(b)
			continue
		}

		sb.WriteString(strings.ReplaceAll(token, unigramWhitespaceSep, " "))
	}

	return sb.String()
}

func (u *Unigram) Encode(text string) []int32 {
	ids := encodeTokens(u.vocab, u.Tokenize(text))
	logutil.Trace("encoded", "string", text, "ids", ids)
	return ids
}

func (u *Unigram) Decode(ids []int32) (string, error) {
	tokens, err := decodeIDs(u.vocab, ids)
	if err != nil {
		return "", err
	}

	s := u.Detokenize(tokens)
	logutil.Trace("decoded", "ids", ids, "string", s)
	return s, nil
}
