package fs

import "iter"

// Config is a read-only, typed view over a JSON shaped document. Keys use
// dots to address nested tables, e.g. "model.type". Getters return the
// first default value, or the zero value, when the key is absent or holds a
// different type.
type Config interface {
	String(string, ...string) string
	Int(string, ...int64) int64
	Float(string, ...float64) float64
	Bool(string, ...bool) bool

	Strings(string, ...[]string) []string
	Array(string) []any
	Table(string) Config

	Has(string) bool
	Keys() iter.Seq[string]
	Value(key string) any
}
