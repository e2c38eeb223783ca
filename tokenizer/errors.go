package tokenizer

import "errors"

var (
	// ErrMissingVocabulary is returned when the vocabulary section of a model
	// document is absent or is not shaped as the tokenizer family requires.
	ErrMissingVocabulary = errors.New("missing vocabulary")

	// ErrMissingMerges is returned when a BPE model document has no merges.
	ErrMissingMerges = errors.New("missing merges")

	// ErrMalformedVocabulary is returned when an entry cannot be parsed into
	// its expected shape or the unknown token index is missing or invalid.
	ErrMalformedVocabulary = errors.New("malformed vocabulary")
)
