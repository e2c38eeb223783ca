package tokenizer

import (
	"fmt"
	"log/slog"
	"strings"
)

// Ranks is the BPE merge priority table. Keys pack the left and right token
// ids into a single uint64 so lookups hash an integer instead of a string pair.
type Ranks struct {
	ranks map[uint64]int32
}

func packPair(a, b int32) uint64 {
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

// Len returns the number of merges kept after resolving the merge list.
func (r *Ranks) Len() int {
	return len(r.ranks)
}

func (r *Ranks) lookup(a, b int32) (int32, bool) {
	rank, ok := r.ranks[packPair(a, b)]
	return rank, ok
}

// parseMerges converts the raw merge list into token pairs. Entries are either
// two element arrays or legacy "a b" strings.
func parseMerges(raw any) ([][2]string, error) {
	var merges [][2]string
	switch raw := raw.(type) {
	case []any:
		merges = make([][2]string, len(raw))
		for i, entry := range raw {
			pair, err := parseMerge(entry)
			if err != nil {
				return nil, fmt.Errorf("merge %d: %w", i, err)
			}
			merges[i] = pair
		}
	case []string:
		merges = make([][2]string, len(raw))
		for i, entry := range raw {
			pair, err := parseMerge(entry)
			if err != nil {
				return nil, fmt.Errorf("merge %d: %w", i, err)
			}
			merges[i] = pair
		}
	case [][2]string:
		merges = raw
	case nil:
		return nil, ErrMissingMerges
	default:
		return nil, fmt.Errorf("%w: expected list, got %T", ErrMissingMerges, raw)
	}

	return merges, nil
}

func parseMerge(entry any) ([2]string, error) {
	switch entry := entry.(type) {
	case string:
		left, right, ok := strings.Cut(entry, " ")
		if !ok {
			return [2]string{}, fmt.Errorf("%w: merge %q is not space separated", ErrMalformedVocabulary, entry)
		}
		return [2]string{left, right}, nil
	case []any:
		if len(entry) != 2 {
			return [2]string{}, fmt.Errorf("%w: expected merge pair of length 2, got %d", ErrMalformedVocabulary, len(entry))
		}
		left, lok := entry[0].(string)
		right, rok := entry[1].(string)
		if !lok || !rok {
			return [2]string{}, fmt.Errorf("%w: merge pair %v is not a pair of strings", ErrMalformedVocabulary, entry)
		}
		return [2]string{left, right}, nil
	case []string:
		if len(entry) != 2 {
			return [2]string{}, fmt.Errorf("%w: expected merge pair of length 2, got %d", ErrMalformedVocabulary, len(entry))
		}
		return [2]string{entry[0], entry[1]}, nil
	default:
		return [2]string{}, fmt.Errorf("%w: unexpected merge %T", ErrMalformedVocabulary, entry)
	}
}

// buildRanks resolves merges against ids in declaration order. Merges that
// reference unknown tokens are skipped; a repeated pair keeps its first rank.
func buildRanks(merges [][2]string, ids map[string]int32) *Ranks {
	ranks := make(map[uint64]int32, len(merges))
	var skipped int
	for i, merge := range merges {
		a, aok := ids[merge[0]]
		b, bok := ids[merge[1]]
		if !aok || !bok {
			skipped++
			continue
		}

		key := packPair(a, b)
		if _, ok := ranks[key]; ok {
			continue
		}
		ranks[key] = int32(i)
	}

	if skipped > 0 {
		slog.Debug("skipped merges referencing unknown tokens", "count", skipped)
	}

	return &Ranks{ranks: ranks}
}
