// Package confcache memoizes typed reads from a configuration source.
//
// The first read of a key decides its value for the lifetime of the Cache:
// either the parsed source value or, when the key is absent or cannot be
// converted, the default supplied by the caller. Later reads return that value
// without consulting the source again, even if the source is reloaded.
package confcache

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Source is the subset of *viper.Viper the cache reads from.
type Source interface {
	IsSet(key string) bool
	Get(key string) interface{}
	UnmarshalKey(key string, rawVal interface{}, opts ...viper.DecoderConfigOption) error
}

type kind string

const (
	kindString     kind = "string"
	kindBool       kind = "bool"
	kindInt        kind = "int"
	kindInt64      kind = "int64"
	kindFloat64    kind = "float64"
	kindConnString kind = "connstring"
)

type entryKey struct {
	kind kind
	key  string
}

// keyOf folds key case the same way viper does.
func keyOf(k kind, key string) entryKey {
	return entryKey{k, strings.ToLower(key)}
}

// ConnectionStringsKey is the section connection strings are read from.
const ConnectionStringsKey = "ConnectionStrings"

// Cache is a read-through, write-once store in front of a Source.
type Cache struct {
	src Source

	mu      sync.Mutex
	entries map[entryKey]interface{}
}

// New returns an empty cache reading from src.
func New(src Source) *Cache {
	return &Cache{
		src:     src,
		entries: make(map[entryKey]interface{}),
	}
}

// Len reports how many entries have been memoized.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// load returns the cached value for k, or computes it with fill and stores it.
func (c *Cache) load(k entryKey, fill func() interface{}) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[k]; ok {
		return v
	}

	v := fill()
	c.entries[k] = v
	return v
}

// scalar parses the raw value of key with conv, falling back to def.
func scalar[T any](c *Cache, k kind, key string, def T, conv func(interface{}) (T, error)) T {
	v := c.load(keyOf(k, key), func() interface{} {
		if !c.src.IsSet(key) {
			log.Debug().
				Str("component", "confcache").
				Str("key", key).
				Str("type", string(k)).
				Msg("Key not set, caching default")
			return def
		}

		parsed, err := conv(c.src.Get(key))
		if err != nil {
			log.Warn().
				Err(err).
				Str("component", "confcache").
				Str("key", key).
				Str("type", string(k)).
				Msg("Failed to parse configuration value, caching default")
			return def
		}
		return parsed
	})

	return v.(T)
}

// String returns the string stored under key, or def.
func (c *Cache) String(key string, def string) string {
	return scalar(c, kindString, key, def, cast.ToStringE)
}

// Bool returns the bool stored under key, or def.
func (c *Cache) Bool(key string, def bool) bool {
	return scalar(c, kindBool, key, def, cast.ToBoolE)
}

// Int returns the int stored under key, or def.
func (c *Cache) Int(key string, def int) int {
	return scalar(c, kindInt, key, def, cast.ToIntE)
}

// Int64 returns the int64 stored under key, or def.
func (c *Cache) Int64(key string, def int64) int64 {
	return scalar(c, kindInt64, key, def, cast.ToInt64E)
}

// Float64 returns the float64 stored under key, or def.
func (c *Cache) Float64(key string, def float64) float64 {
	return scalar(c, kindFloat64, key, def, cast.ToFloat64E)
}

// ConnectionString returns ConnectionStrings.<name>, or "" when absent.
func (c *Cache) ConnectionString(name string) string {
	key := ConnectionStringsKey + "." + name
	return scalar(c, kindConnString, key, "", cast.ToStringE)
}

// bind decodes the section under key into a fresh T. ok is false when the
// section is absent or cannot be decoded.
func bind[T any](c *Cache, key string, out *T) bool {
	if !c.src.IsSet(key) {
		return false
	}

	if err := c.src.UnmarshalKey(key, out); err != nil {
		log.Warn().
			Err(err).
			Str("component", "confcache").
			Str("key", key).
			Msg("Failed to bind configuration section, caching default")
		return false
	}

	return true
}

func typeKind(prefix string, t reflect.Type) kind {
	return kind(fmt.Sprintf("%s:%s", prefix, t.String()))
}

// List returns the sequence stored under key bound to []T. An absent or
// malformed section yields an empty, non-nil slice which is cached like any
// other value. Callers get their own copy of the slice.
func List[T any](c *Cache, key string) []T {
	k := keyOf(typeKind("list", reflect.TypeOf((*T)(nil)).Elem()), key)

	v := c.load(k, func() interface{} {
		var out []T
		if !bind(c, key, &out) || out == nil {
			return []T{}
		}
		return out
	})

	return slices.Clone(v.([]T))
}

// Object returns the section stored under key bound to T, or the zero T.
func Object[T any](c *Cache, key string) T {
	k := keyOf(typeKind("object", reflect.TypeOf((*T)(nil)).Elem()), key)

	v := c.load(k, func() interface{} {
		var out T
		if !bind(c, key, &out) {
			var zero T
			return zero
		}
		return out
	})

	return v.(T)
}
