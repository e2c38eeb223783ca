// Package jsonkv implements fs.Config over a decoded JSON document.
package jsonkv

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/jmorganca/subword/fs"
)

type KV map[string]any

var _ fs.Config = KV(nil)

// Decode reads one JSON object from r.
func Decode(r io.Reader) (KV, error) {
	var kv KV
	if err := json.NewDecoder(r).Decode(&kv); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	if kv == nil {
		kv = KV{}
	}

	return kv, nil
}

// Value returns the raw value at key, or nil.
func (kv KV) Value(key string) any {
	var v any = map[string]any(kv)
	for part := range strings.SplitSeq(key, ".") {
		table, ok := v.(map[string]any)
		if !ok {
			return nil
		}

		if v, ok = table[part]; !ok {
			return nil
		}
	}

	return v
}

func (kv KV) Has(key string) bool {
	return kv.Value(key) != nil
}

func (kv KV) Keys() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(kv)))
}

func (kv KV) String(key string, defaultValue ...string) string {
	val, _ := keyValue(kv, key, append(defaultValue, "")...)
	return val
}

func (kv KV) Int(key string, defaultValue ...int64) int64 {
	defaultValue = append(defaultValue, 0)
	switch v := kv.Value(key).(type) {
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
	}

	slog.Debug("key with type not found", "key", key, "default", defaultValue[0])
	return defaultValue[0]
}

func (kv KV) Float(key string, defaultValue ...float64) float64 {
	val, _ := keyValue(kv, key, append(defaultValue, 0)...)
	return val
}

func (kv KV) Bool(key string, defaultValue ...bool) bool {
	val, _ := keyValue(kv, key, append(defaultValue, false)...)
	return val
}

func (kv KV) Strings(key string, defaultValue ...[]string) []string {
	values, ok := kv.Value(key).([]any)
	if !ok {
		return append(defaultValue, []string(nil))[0]
	}

	s := make([]string, 0, len(values))
	for _, v := range values {
		if v, ok := v.(string); ok {
			s = append(s, v)
		}
	}
	return s
}

func (kv KV) Array(key string) []any {
	val, _ := keyValue(kv, key, []any(nil))
	return val
}

// Table returns the nested object at key. Absent keys yield an empty table.
func (kv KV) Table(key string) fs.Config {
	val, _ := keyValue(kv, key, map[string]any(nil))
	return KV(val)
}

func keyValue[T string | float64 | bool | []any | map[string]any](kv KV, key string, defaultValue ...T) (T, bool) {
	if val, ok := kv.Value(key).(T); ok {
		return val, true
	}

	slog.Debug("key with type not found", "key", key, "default", defaultValue[0])
	return defaultValue[0], false
}
