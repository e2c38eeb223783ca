package tokenizer

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/text/unicode/norm"
)

type Special int32

const (
	SpecialBOS Special = iota
	SpecialEOS
	SpecialUNK
)

func (s Special) String() string {
	switch s {
	case SpecialBOS:
		return "bos"
	case SpecialEOS:
		return "eos"
	case SpecialUNK:
		return "unk"
	default:
		return fmt.Sprintf("special(%d)", int32(s))
	}
}

// AddedToken is a special or user token declared next to the model. Added
// tokens take precedence over base vocabulary entries with the same content
// or the same id.
type AddedToken struct {
	ID         int32  `mapstructure:"id"`
	Content    string `mapstructure:"content"`
	LStrip     bool   `mapstructure:"lstrip"`
	RStrip     bool   `mapstructure:"rstrip"`
	SingleWord bool   `mapstructure:"single_word"`
	Normalized bool   `mapstructure:"normalized"`
	Special    bool   `mapstructure:"special"`
}

type specialToken struct {
	value string
	id    int32
}

// Vocabulary is the bidirectional token/id table shared by every tokenizer
// family. It is immutable once built.
type Vocabulary struct {
	values []string
	ids    map[string]int32

	// normalized is only present when two distinct tokens share an NFC form
	normalized map[string]int32

	added    []AddedToken
	addedIDs map[int32]bool

	specials map[Special]specialToken
}

// Size returns the length of the id space.
func (v *Vocabulary) Size() int {
	return len(v.values)
}

// Encode returns the id for token, falling back to the unknown id. It returns
// -1 when the token is absent and the vocabulary has no unknown token.
func (v *Vocabulary) Encode(token string) int32 {
	if id, ok := v.lookup(token); ok {
		return id
	}

	if unk, ok := v.specials[SpecialUNK]; ok {
		return unk.id
	}

	return -1
}

// lookup resolves token exactly, then through the normalized table.
func (v *Vocabulary) lookup(token string) (int32, bool) {
	if id, ok := v.ids[token]; ok {
		return id, true
	}

	if v.normalized != nil {
		if id, ok := v.normalized[norm.NFC.String(token)]; ok {
			return id, true
		}
	}

	return 0, false
}

// Decode returns the token for id. It reports false when id is out of range.
func (v *Vocabulary) Decode(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.values) {
		return "", false
	}

	// ids without a token leave a hole in values
	token := v.values[id]
	if got, ok := v.ids[token]; !ok || got != id {
		return "", false
	}

	return token, true
}

// Special returns the token string and id configured for kind.
func (v *Vocabulary) Special(kind Special) (string, int32, bool) {
	s, ok := v.specials[kind]
	return s.value, s.id, ok
}

func (v *Vocabulary) Is(id int32, kind Special) bool {
	s, ok := v.specials[kind]
	return ok && s.id == id
}

// IsAdded reports whether id belongs to an added token.
func (v *Vocabulary) IsAdded(id int32) bool {
	return v.addedIDs[id]
}

func (v *Vocabulary) isAddedToken(token string) bool {
	id, ok := v.ids[token]
	return ok && v.addedIDs[id]
}

// AddedTokens returns the added tokens, longest content first.
func (v *Vocabulary) AddedTokens() []AddedToken {
	return slices.Clone(v.added)
}

// baseIDs converts a raw token->id mapping into the base id map and applies
// the added tokens over it.
func baseIDs(raw any, added []AddedToken) (map[string]int32, error) {
	var ids map[string]int32
	switch raw := raw.(type) {
	case map[string]any:
		ids = make(map[string]int32, len(raw)+len(added))
		for token, v := range raw {
			id, ok := asID(v)
			if !ok {
				return nil, fmt.Errorf("%w: token %q has id %v", ErrMalformedVocabulary, token, v)
			}
			ids[token] = id
		}
	case map[string]int32:
		ids = make(map[string]int32, len(raw)+len(added))
		for token, id := range raw {
			if id < 0 {
				return nil, fmt.Errorf("%w: token %q has id %d", ErrMalformedVocabulary, token, id)
			}
			ids[token] = id
		}
	case nil:
		return nil, ErrMissingVocabulary
	default:
		return nil, fmt.Errorf("%w: expected token to id mapping, got %T", ErrMissingVocabulary, raw)
	}

	if len(ids) == 0 {
		return nil, ErrMissingVocabulary
	}

	overlayAdded(ids, added)
	return ids, nil
}

// overlayAdded applies added tokens to ids. Base entries whose id is claimed
// by an added token with different content are dropped.
func overlayAdded(ids map[string]int32, added []AddedToken) {
	if len(added) == 0 {
		return
	}

	claimed := make(map[int32]string, len(added))
	for _, t := range added {
		claimed[t.ID] = t.Content
	}

	for token, id := range ids {
		if content, ok := claimed[id]; ok && content != token {
			slog.Debug("added token replaces vocabulary entry", "id", id, "token", token, "added", content)
			delete(ids, token)
		}
	}

	for _, t := range added {
		ids[t.Content] = t.ID
	}
}

// inverseIDs builds the id->token table from ids.
func inverseIDs(ids map[string]int32) ([]string, error) {
	var size int32
	for _, id := range ids {
		size = max(size, id+1)
	}

	values := make([]string, size)
	present := make([]bool, size)
	for token, id := range ids {
		if prev := values[id]; present[id] {
			// keep the error independent of map iteration order
			a, b := min(prev, token), max(prev, token)
			return nil, fmt.Errorf("%w: id %d is shared by %q and %q", ErrMalformedVocabulary, id, a, b)
		}
		values[id] = token
		present[id] = true
	}

	return values, nil
}

// normalizedIDs returns an NFC keyed table when normalizing the vocabulary
// collapses distinct tokens, and nil otherwise. Colliding keys resolve to the
// lowest id.
func normalizedIDs(ids map[string]int32) map[string]int32 {
	normalized := make(map[string]int32, len(ids))
	for token, id := range ids {
		key := norm.NFC.String(token)
		if prev, ok := normalized[key]; ok && prev < id {
			continue
		}
		normalized[key] = id
	}

	if len(normalized) == len(ids) {
		return nil
	}

	slog.Debug("vocabulary has normalization collisions", "tokens", len(ids), "normalized", len(normalized))
	return normalized
}

// sortAdded orders added tokens longest content first so longer tokens win
// when one contains another.
func sortAdded(added []AddedToken) []AddedToken {
	added = slices.Clone(added)
	slices.SortStableFunc(added, func(a, b AddedToken) int {
		return cmp.Or(
			cmp.Compare(len(b.Content), len(a.Content)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return added
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func asID(v any) (int32, bool) {
	i, ok := asInt(v)
	if !ok || i < 0 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
