package tokenizer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBaseIDs(t *testing.T) {
	t.Run("json numbers", func(t *testing.T) {
		ids, err := baseIDs(map[string]any{"a": float64(0), "b": json.Number("1"), "c": 2}, nil)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(map[string]int32{"a": 0, "b": 1, "c": 2}, ids); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("added tokens win", func(t *testing.T) {
		ids, err := baseIDs(map[string]int32{"a": 0, "b": 1, "<s>": 2}, []AddedToken{
			{ID: 1, Content: "<pad>"},
			{ID: 5, Content: "<s>"},
		})
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(map[string]int32{"a": 0, "<pad>": 1, "<s>": 5}, ids); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	cases := []struct {
		name string
		raw  any
		err  error
	}{
		{"nil", nil, ErrMissingVocabulary},
		{"empty", map[string]any{}, ErrMissingVocabulary},
		{"list", []any{"a", "b"}, ErrMissingVocabulary},
		{"negative id", map[string]any{"a": float64(-1)}, ErrMalformedVocabulary},
		{"fractional id", map[string]any{"a": 1.5}, ErrMalformedVocabulary},
		{"string id", map[string]any{"a": "1"}, ErrMalformedVocabulary},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := baseIDs(tt.raw, nil); !errors.Is(err, tt.err) {
				t.Errorf("want %v, got %v", tt.err, err)
			}
		})
	}
}

func TestInverseIDs(t *testing.T) {
	values, err := inverseIDs(map[string]int32{"a": 0, "c": 3})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a", "", "", "c"}, values); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = inverseIDs(map[string]int32{"a": 0, "b": 0})
	if !errors.Is(err, ErrMalformedVocabulary) {
		t.Fatalf("want %v, got %v", ErrMalformedVocabulary, err)
	}

	if want := `malformed vocabulary: id 0 is shared by "a" and "b"`; err.Error() != want {
		t.Errorf("want %q, got %q", want, err.Error())
	}

	_, err = inverseIDs(map[string]int32{"": 1, "b": 1})
	if want := `malformed vocabulary: id 1 is shared by "" and "b"`; err == nil || err.Error() != want {
		t.Errorf("want %q, got %v", want, err)
	}
}

func newTestVocabulary(t *testing.T, ids map[string]int32, src Source) *Vocabulary {
	t.Helper()

	values, err := inverseIDs(ids)
	if err != nil {
		t.Fatal(err)
	}

	return newVocabulary(values, ids, normalizedIDs(ids), src)
}

func TestVocabularyEncode(t *testing.T) {
	// U+00C5 and A + U+030A share an NFC form.
	ids := map[string]int32{"<unk>": 0, "\u00c5": 1, "A\u030a": 2, "x": 3}

	t.Run("with unknown", func(t *testing.T) {
		v := newTestVocabulary(t, ids, Source{UNK: "<unk>"})

		cases := map[string]int32{
			"x":       3,
			"\u00c5":  1,
			"A\u030a": 2,
			"\u212b":  1,
			"<unk>":   0,
			"absent":  0,
		}

		for token, want := range cases {
			if got := v.Encode(token); got != want {
				t.Errorf("Encode(%q): want %d, got %d", token, want, got)
			}
		}
	})

	t.Run("without unknown", func(t *testing.T) {
		v := newTestVocabulary(t, ids, Source{})
		if got := v.Encode("absent"); got != -1 {
			t.Errorf("want -1, got %d", got)
		}
	})

	t.Run("without collisions", func(t *testing.T) {
		v := newTestVocabulary(t, map[string]int32{"\u00c5": 0, "x": 1}, Source{})
		if v.normalized != nil {
			t.Errorf("unexpected normalized table %v", v.normalized)
		}

		if got := v.Encode("\u212b"); got != -1 {
			t.Errorf("want -1, got %d", got)
		}
	})
}

func TestVocabularyDecode(t *testing.T) {
	v := newTestVocabulary(t, map[string]int32{"a": 0, "c": 2}, Source{})

	cases := []struct {
		id    int32
		token string
		ok    bool
	}{
		{0, "a", true},
		{1, "", false},
		{2, "c", true},
		{3, "", false},
		{-1, "", false},
	}

	for _, tt := range cases {
		token, ok := v.Decode(tt.id)
		if token != tt.token || ok != tt.ok {
			t.Errorf("Decode(%d): want (%q, %t), got (%q, %t)", tt.id, tt.token, tt.ok, token, ok)
		}
	}

	if v.Size() != 3 {
		t.Errorf("want size 3, got %d", v.Size())
	}

	v = newTestVocabulary(t, map[string]int32{"a": 0, "": 1, "c": 3}, Source{})
	for _, tt := range []struct {
		id    int32
		token string
		ok    bool
	}{
		{0, "a", true},
		{1, "", true},
		{2, "", false},
		{3, "c", true},
	} {
		token, ok := v.Decode(tt.id)
		if token != tt.token || ok != tt.ok {
			t.Errorf("Decode(%d) with empty token: want (%q, %t), got (%q, %t)", tt.id, tt.token, tt.ok, token, ok)
		}
	}
}

func TestVocabularySpecials(t *testing.T) {
	added := []AddedToken{
		{ID: 0, Content: "<s>", Special: true},
		{ID: 1, Content: "</s>", Special: true},
	}

	ids, err := baseIDs(map[string]int32{"a": 2}, added)
	if err != nil {
		t.Fatal(err)
	}

	v := newTestVocabulary(t, ids, Source{Added: added, BOS: "<s>", EOS: "</s>", UNK: "<missing>"})

	if s, id, ok := v.Special(SpecialBOS); !ok || s != "<s>" || id != 0 {
		t.Errorf("bos: got (%q, %d, %t)", s, id, ok)
	}

	if s, id, ok := v.Special(SpecialEOS); !ok || s != "</s>" || id != 1 {
		t.Errorf("eos: got (%q, %d, %t)", s, id, ok)
	}

	if _, _, ok := v.Special(SpecialUNK); ok {
		t.Error("unk should not resolve")
	}

	if !v.Is(1, SpecialEOS) || v.Is(1, SpecialBOS) {
		t.Error("Is reports wrong kinds for id 1")
	}

	if !v.IsAdded(0) || v.IsAdded(2) {
		t.Error("IsAdded reports wrong ids")
	}

	if diff := cmp.Diff([]AddedToken{added[1], added[0]}, v.AddedTokens()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
