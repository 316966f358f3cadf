// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package plugin

import (
	"fmt"
	"strconv"
)

// Record is one heterogeneous row as emitted by a connector: a tagged
// key/value mapping with typed accessors. Fields are looked up by name in
// each record; they are not checked against the layer's column
// declaration.
type Record map[string]any

// Frame is an ordered collection of records.
type Frame []Record

// Get returns the raw value for key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// String returns the value for key rendered as a string. Numeric values are
// formatted; nil and missing keys report false.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// Strings returns the value for key as a list of scalar strings: a scalar
// becomes a one-element list, a list yields one entry per element. Nil
// elements are skipped.
func (r Record) Strings(key string) []string {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			s := Record{"v": item}
			if str, ok := s.String("v"); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		if s, ok := r.String(key); ok {
			return []string{s}
		}
		return nil
	}
}

// Int returns the value for key coerced to an integer. Strings are parsed;
// floats are accepted when integral.
func (r Record) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float returns the value for key coerced to a float.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
