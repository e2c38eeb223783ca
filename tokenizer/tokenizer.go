// Package tokenizer converts text to the sub-word tokens a pretrained model
// expects and back. Two families are supported: byte-level BPE and Unigram.
// Tokenizers are immutable after construction and safe for concurrent use.
package tokenizer

import (
	"context"
	"fmt"

	"github.com/jmorganca/subword/logutil"
)

// Tokenizer is implemented by every tokenizer family.
type Tokenizer interface {
	// Tokenize splits text into vocabulary tokens. It never fails; content
	// the vocabulary cannot represent degrades to byte escapes or the
	// unknown token.
	Tokenize(text string) []string

	// Detokenize joins tokens back into text.
	Detokenize(tokens []string) string

	// TokenToID returns the id of token, or the unknown id when absent.
	TokenToID(token string) int32

	// IDToToken returns the token for id.
	IDToToken(id int32) (string, bool)

	Encode(text string) []int32
	Decode(ids []int32) (string, error)

	Type() string
	Vocabulary() *Vocabulary

	// Snapshot returns a canonical encoding of the built structures.
	Snapshot() ([]byte, error)
}

const (
	TypeBPE     = "BPE"
	TypeUnigram = "Unigram"
)

// Source is one fully materialized tokenizer definition. Vocab, Merges and
// UnkID hold the raw values read from the model document and are validated
// during construction.
type Source struct {
	Type string

	// Vocab is a token to id mapping for BPE and a list of [token, score]
	// pairs for Unigram.
	Vocab any

	// Merges lists BPE merges as [left, right] pairs or "left right" strings.
	Merges any

	// UnkID is the index of the unknown token in a Unigram vocabulary.
	UnkID any

	// Pretokenizer overrides the default BPE split pattern.
	Pretokenizer string

	Added []AddedToken

	BOS, EOS, UNK string

	FuseUnk bool
}

// New builds the tokenizer family named by src.Type.
func New(ctx context.Context, src Source, opts BuildOptions) (Tokenizer, error) {
	switch src.Type {
	case TypeBPE:
		return NewBytePairEncoding(ctx, src, opts)
	case TypeUnigram:
		return NewUnigram(ctx, src, opts)
	default:
		return nil, fmt.Errorf("unsupported tokenizer type %q", src.Type)
	}
}

// resolveSpecials looks up the configured special token strings.
func resolveSpecials(ids map[string]int32, names map[Special]string) map[Special]specialToken {
	specials := make(map[Special]specialToken, len(names))
	for kind, name := range names {
		if name == "" {
			continue
		}

		id, ok := ids[name]
		if !ok {
			logutil.Trace("special token not in vocabulary", "kind", kind, "token", name)
			continue
		}

		specials[kind] = specialToken{value: name, id: id}
	}

	return specials
}

func encodeTokens(v *Vocabulary, tokens []string) []int32 {
	ids := make([]int32, 0, len(tokens))
	for _, token := range tokens {
		id := v.Encode(token)
		if id < 0 {
			logutil.Trace("dropping token without id", "token", token)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func decodeIDs(v *Vocabulary, ids []int32) ([]string, error) {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		token, ok := v.Decode(id)
		if !ok {
			return nil, fmt.Errorf("invalid token id: %d", id)
		}
		tokens[i] = token
	}
	return tokens, nil
}
