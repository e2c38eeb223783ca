package tokenizer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestUnigram(t testing.TB, entries []ScoredToken, unkID any, src Source) *Unigram {
	t.Helper()

	vocab := make([]any, len(entries))
	for i, entry := range entries {
		vocab[i] = []any{entry.Token, entry.Score}
	}

	src.Type = TypeUnigram
	src.Vocab = vocab
	src.UnkID = unkID

	u, err := NewUnigram(context.Background(), src, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}

	return u
}

func TestUnigramOptimality(t *testing.T) {
	u := newTestUnigram(t, []ScoredToken{
		{"<unk>", -100},
		{"ab", -1},
		{"a", -2},
		{"b", -2},
	}, 0.0, Source{})

	if diff := cmp.Diff([]string{"ab"}, u.Tokenize("ab")); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	u = newTestUnigram(t, []ScoredToken{
		{"<unk>", -100},
		{"a", -2},
		{"b", -2},
	}, 0.0, Source{})

	if diff := cmp.Diff([]string{"a", "b"}, u.Tokenize("ab")); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnigramUnknown(t *testing.T) {
	entries := []ScoredToken{
		{"<unk>", 0},
		{"a", -1},
		{"b", -1},
		{"▁", -0.5},
	}

	cases := []struct {
		name    string
		fuseUnk bool
		input   string
		want    []string
	}{
		{"single unknown", false, "axb", []string{"a", "<unk>", "b"}},
		{"consecutive unknowns", false, "axyb", []string{"a", "<unk>", "<unk>", "b"}},
		{"fused unknowns", true, "axyb", []string{"a", "<unk>", "b"}},
		{"separate runs stay separate", true, "xaxy", []string{"<unk>", "a", "<unk>"}},
		{"all unknown", true, "日本語", []string{"<unk>"}},
		{"all unknown unfused", false, "日本", []string{"<unk>", "<unk>"}},
		{"empty", false, "", nil},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestUnigram(t, entries, 0.0, Source{FuseUnk: tt.fuseUnk})
			if diff := cmp.Diff(tt.want, u.Tokenize(tt.input)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnigramUnknownScore(t *testing.T) {
	u := newTestUnigram(t, []ScoredToken{
		{"a", -3},
		{"<unk>", 0},
		{"b", -7.5},
	}, 1.0, Source{})

	score, ok := u.Score(1)
	if !ok || score != -17.5 {
		t.Errorf("want unknown score -17.5, got %v", score)
	}

	if _, ok := u.Score(3); ok {
		t.Error("expected out of range score to fail")
	}

	s, id, ok := u.Vocabulary().Special(SpecialUNK)
	if !ok || s != "<unk>" || id != 1 {
		t.Errorf("unk: got (%q, %d, %t)", s, id, ok)
	}

	if got := u.TokenToID("missing"); got != 1 {
		t.Errorf("want unknown id 1, got %d", got)
	}
}

func TestUnigramRoundTrip(t *testing.T) {
	u := newTestUnigram(t, []ScoredToken{
		{"<unk>", 0},
		{"<s>", 0},
		{"</s>", 0},
		{"▁", -2},
		{"▁hello", -3},
		{"▁world", -3},
		{"hello", -4},
		{"!", -2},
		{"<0x0A>", -5},
	}, 0.0, Source{
		Added: []AddedToken{{ID: 1, Content: "<s>", Special: true}, {ID: 2, Content: "</s>", Special: true}},
		BOS:   "<s>",
		EOS:   "</s>",
	})

	tokens := u.Tokenize("<s>▁hello▁world!</s>")
	if diff := cmp.Diff([]string{"<s>", "▁hello", "▁world", "!", "</s>"}, tokens); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	ids := u.Encode("▁hello▁world!")
	if diff := cmp.Diff([]int32{4, 5, 7}, ids); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	s, err := u.Decode(append(ids, 8))
	if err != nil {
		t.Fatal(err)
	}

	if want := " hello world!\n"; s != want {
		t.Errorf("want %q, got %q", want, s)
	}

	if _, err := u.Decode([]int32{42}); err == nil {
		t.Error("expected error for out of range id")
	}

	for id := range int32(9) {
		token, ok := u.IDToToken(id)
		if !ok {
			t.Fatalf("id %d has no token", id)
		}

		if got := u.TokenToID(token); got != id {
			t.Errorf("TokenToID(%q): want %d, got %d", token, id, got)
		}
	}
}

func TestUnigramZeroWidth(t *testing.T) {
	const zwsp = "\u200b"

	u := newTestUnigram(t, []ScoredToken{
		{"<unk>", 0},
		{"▁", -2},
		{"a", -2},
		{zwsp, -2},
		{"a" + zwsp, -1},
	}, 0.0, Source{})

	cases := []struct {
		input string
		want  []string
	}{
		{zwsp, []string{zwsp}},
		{"a" + zwsp, []string{"a" + zwsp}},
		{zwsp + "a", []string{zwsp, "a"}},
	}

	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			tokens := u.Tokenize(tt.input)
			if diff := cmp.Diff(tt.want, tokens); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}

			for _, token := range tokens {
				id := u.TokenToID(token)
				if id == 0 {
					t.Fatalf("TokenToID(%q) fell back to the unknown token", token)
				}

				got, ok := u.IDToToken(id)
				if !ok || got != token || len(got) != len(token) {
					t.Errorf("IDToToken(%d): want %q (%d bytes), got %q (%d bytes)", id, token, len(token), got, len(got))
				}
			}
		})
	}
}

func TestUnigramPrefixes(t *testing.T) {
	u := newTestUnigram(t, []ScoredToken{
		{"<unk>", 0},
		{"▁t", -1},
		{"▁th", -1},
		{"▁the", -1},
		{"he", -1},
	}, 0.0, Source{})

	var got []string
	for prefix := range u.Trie().CommonPrefixSearch("▁there") {
		got = append(got, prefix)
	}

	if diff := cmp.Diff([]string{"▁t", "▁th", "▁the"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnigramErrors(t *testing.T) {
	valid := []any{[]any{"<unk>", 0.0}, []any{"a", -1.0}}

	cases := []struct {
		name string
		src  Source
		err  error
	}{
		{"missing vocabulary", Source{UnkID: 0.0}, ErrMissingVocabulary},
		{"empty vocabulary", Source{Vocab: []any{}, UnkID: 0.0}, ErrMissingVocabulary},
		{"object vocabulary", Source{Vocab: map[string]any{"a": 0.0}, UnkID: 0.0}, ErrMissingVocabulary},
		{"missing unk id", Source{Vocab: valid}, ErrMalformedVocabulary},
		{"string unk id", Source{Vocab: valid, UnkID: "0"}, ErrMalformedVocabulary},
		{"fractional unk id", Source{Vocab: valid, UnkID: 0.5}, ErrMalformedVocabulary},
		{"negative unk id", Source{Vocab: valid, UnkID: -1.0}, ErrMalformedVocabulary},
		{"unk id out of range", Source{Vocab: valid, UnkID: 2.0}, ErrMalformedVocabulary},
		{"short entry", Source{Vocab: []any{[]any{"a"}}, UnkID: 0.0}, ErrMalformedVocabulary},
		{"entry is not a list", Source{Vocab: []any{"a"}, UnkID: 0.0}, ErrMalformedVocabulary},
		{"string score", Source{Vocab: []any{[]any{"a", "x"}}, UnkID: 0.0}, ErrMalformedVocabulary},
		{"numeric token", Source{Vocab: []any{[]any{1.0, -1.0}}, UnkID: 0.0}, ErrMalformedVocabulary},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			for _, opts := range []BuildOptions{{}, {Sequential: true}} {
				_, err := NewUnigram(context.Background(), tt.src, opts)
				if !errors.Is(err, tt.err) {
					t.Errorf("sequential=%t: want %v, got %v", opts.Sequential, tt.err, err)
				}
			}
		})
	}
}
