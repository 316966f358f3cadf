// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
)

func TestRecord_String(t *testing.T) {
	rec := plugin.Record{
		"name":  "alice",
		"views": 42,
		"ratio": 0.5,
		"none":  nil,
	}

	s, ok := rec.String("name")
	assert.True(t, ok)
	assert.Equal(t, "alice", s)

	s, ok = rec.String("views")
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = rec.String("ratio")
	assert.True(t, ok)
	assert.Equal(t, "0.5", s)

	_, ok = rec.String("none")
	assert.False(t, ok)
	_, ok = rec.String("missing")
	assert.False(t, ok)
}

func TestRecord_Strings(t *testing.T) {
	rec := plugin.Record{
		"scalar": "bob",
		"list":   []any{"bob", "carol", nil, 7},
		"typed":  []string{"x", "y"},
	}

	assert.Equal(t, []string{"bob"}, rec.Strings("scalar"))
	assert.Equal(t, []string{"bob", "carol", "7"}, rec.Strings("list"))
	assert.Equal(t, []string{"x", "y"}, rec.Strings("typed"))
	assert.Nil(t, rec.Strings("missing"))
}

func TestRecord_Int(t *testing.T) {
	rec := plugin.Record{
		"int":      7,
		"int64":    int64(8),
		"float":    9.0,
		"fraction": 9.5,
		"str":      "10",
		"junk":     "ten",
	}

	for key, want := range map[string]int64{"int": 7, "int64": 8, "float": 9, "str": 10} {
		v, ok := rec.Int(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}

	_, ok := rec.Int("fraction")
	assert.False(t, ok)
	_, ok = rec.Int("junk")
	assert.False(t, ok)
}

func TestRecord_Float(t *testing.T) {
	rec := plugin.Record{"f": 1.5, "i": 2, "s": "3.5", "junk": "x"}

	for key, want := range map[string]float64{"f": 1.5, "i": 2, "s": 3.5} {
		v, ok := rec.Float(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}

	_, ok := rec.Float("junk")
	assert.False(t, ok)
}
