package tokenizer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/jmorganca/subword/fs"
	"github.com/jmorganca/subword/fs/jsonkv"
)

const (
	DocumentName = "tokenizer.json"
	ConfigName   = "tokenizer_config.json"
)

// LoadFS reads tokenizer.json and, when present, tokenizer_config.json from
// fsys and builds the tokenizer they describe.
func LoadFS(ctx context.Context, fsys iofs.FS, opts BuildOptions) (Tokenizer, error) {
	doc, err := readConfig(fsys, DocumentName)
	if err != nil {
		return nil, err
	}

	side, err := readConfig(fsys, ConfigName)
	if errors.Is(err, iofs.ErrNotExist) {
		slog.Debug("no side configuration", "name", ConfigName)
		side = jsonkv.KV{}
	} else if err != nil {
		return nil, err
	}

	src, err := SourceFromConfig(doc, side)
	if err != nil {
		return nil, err
	}

	return New(ctx, src, opts)
}

func readConfig(fsys iofs.FS, name string) (jsonkv.KV, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kv, err := jsonkv.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return kv, nil
}

// SourceFromConfig assembles a Source from a tokenizer document and its side
// configuration. side may be empty.
func SourceFromConfig(doc, side fs.Config) (Source, error) {
	model := doc.Table("model")

	src := Source{
		Type:         model.String("type"),
		Vocab:        model.Value("vocab"),
		Merges:       model.Value("merges"),
		UnkID:        model.Value("unk_id"),
		Pretokenizer: splitPattern(doc.Table("pre_tokenizer")),
		BOS:          tokenContent(side.Value("bos_token")),
		EOS:          tokenContent(side.Value("eos_token")),
		UNK:          cmp.Or(tokenContent(side.Value("unk_token")), model.String("unk_token")),
		FuseUnk:      side.Bool("fuse_unk", model.Bool("fuse_unk")),
	}

	if src.Type == "" {
		switch {
		case model.Has("merges"):
			src.Type = TypeBPE
		case model.Array("vocab") != nil:
			src.Type = TypeUnigram
		default:
			return Source{}, fmt.Errorf("%w: model.type is not set and cannot be inferred", ErrMissingVocabulary)
		}
		slog.Debug("inferred tokenizer type", "type", src.Type)
	}

	added, err := addedTokens(doc.Array("added_tokens"), side.Table("added_tokens_decoder"))
	if err != nil {
		return Source{}, err
	}
	src.Added = added

	return src, nil
}

// addedTokens merges the document's added_tokens list with the side
// configuration's added_tokens_decoder table. Entries from the document win.
func addedTokens(list []any, decoder fs.Config) ([]AddedToken, error) {
	byID := make(map[int32]AddedToken)

	for key := range decoder.Keys() {
		id, err := strconv.ParseInt(key, 10, 32)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: added token id %q", ErrMalformedVocabulary, key)
		}

		var token AddedToken
		if err := mapstructure.Decode(decoder.Value(key), &token); err != nil {
			return nil, fmt.Errorf("%w: added token %d: %v", ErrMalformedVocabulary, id, err)
		}

		token.ID = int32(id)
		byID[token.ID] = token
	}

	for i, entry := range list {
		var token AddedToken
		if err := mapstructure.Decode(entry, &token); err != nil {
			return nil, fmt.Errorf("%w: added token %d: %v", ErrMalformedVocabulary, i, err)
		}

		if token.ID < 0 {
			return nil, fmt.Errorf("%w: added token %q has negative id %d", ErrMalformedVocabulary, token.Content, token.ID)
		}

		byID[token.ID] = token
	}

	added := make([]AddedToken, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		if byID[id].Content == "" {
			slog.Debug("skipping added token without content", "id", id)
			continue
		}
		added = append(added, byID[id])
	}

	return added, nil
}

// tokenContent reads a special token declared either as a plain string or as
// an object with a content field.
func tokenContent(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["content"].(string)
		return s
	default:
		return ""
	}
}

// splitPattern returns the regex of the first Split pre-tokenizer, searching
// Sequence pre-tokenizers depth first.
func splitPattern(c fs.Config) string {
	switch c.String("type") {
	case "Split":
		return c.String("pattern.Regex")
	case "Sequence":
		for _, p := range c.Array("pretokenizers") {
			table, ok := p.(map[string]any)
			if !ok {
				continue
			}

			if pattern := splitPattern(jsonkv.KV(table)); pattern != "" {
				return pattern
			}
		}
	}

	return ""
}
