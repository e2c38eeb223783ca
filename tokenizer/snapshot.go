package tokenizer

import (
	"github.com/fxamacker/cbor/v2"
)

// snapshotMode encodes maps with sorted keys so equal structures always
// produce equal bytes.
var snapshotMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type vocabularySnapshot struct {
	Values     []string          `cbor:"values"`
	IDs        map[string]int32  `cbor:"ids"`
	Normalized map[string]int32  `cbor:"normalized,omitempty"`
	Added      []AddedToken      `cbor:"added,omitempty"`
	Specials   map[string]string `cbor:"specials,omitempty"`
}

func (v *Vocabulary) snapshot() vocabularySnapshot {
	specials := make(map[string]string, len(v.specials))
	for kind, s := range v.specials {
		specials[kind.String()] = s.value
	}

	return vocabularySnapshot{
		Values:     v.values,
		IDs:        v.ids,
		Normalized: v.normalized,
		Added:      v.added,
		Specials:   specials,
	}
}

type bytePairEncodingSnapshot struct {
	Type         string             `cbor:"type"`
	Vocabulary   vocabularySnapshot `cbor:"vocabulary"`
	Ranks        map[uint64]int32   `cbor:"ranks"`
	Pretokenizer string             `cbor:"pretokenizer"`
}

func (bpe *BytePairEncoding) Snapshot() ([]byte, error) {
	return snapshotMode.Marshal(bytePairEncodingSnapshot{
		Type:         TypeBPE,
		Vocabulary:   bpe.vocab.snapshot(),
		Ranks:        bpe.ranks.ranks,
		Pretokenizer: bpe.pattern,
	})
}

type unigramSnapshot struct {
	Type       string             `cbor:"type"`
	Vocabulary vocabularySnapshot `cbor:"vocabulary"`
	Scores     []float64          `cbor:"scores"`
	Trie       []trieEntry        `cbor:"trie"`
	UnkID      int32              `cbor:"unk_id"`
	UnkScore   float64            `cbor:"unk_score"`
	FuseUnk    bool               `cbor:"fuse_unk"`
}

func (u *Unigram) Snapshot() ([]byte, error) {
	return snapshotMode.Marshal(unigramSnapshot{
		Type:       TypeUnigram,
		Vocabulary: u.vocab.snapshot(),
		Scores:     u.scores,
		Trie:       u.trie.entries(),
		UnkID:      u.unkID,
		UnkScore:   u.unkScore,
		FuseUnk:    u.fuseUnk,
	})
}
