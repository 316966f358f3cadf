// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/aggregate"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

func raw(source, target string, views any) store.RawEdge {
	return store.RawEdge{
		Source: source, Target: target, Layer: "base",
		Attrs: map[string]any{"views": views},
	}
}

func TestFold_WeightIsMultiplicity(t *testing.T) {
	edges := []store.RawEdge{
		raw("a", "b", 1), raw("a", "c", 2), raw("a", "b", 3), raw("a", "b", 5),
	}

	out := aggregate.Fold(edges, 4, nil)
	require.Len(t, out, 2)

	assert.Equal(t, "b", out[0].Target)
	assert.EqualValues(t, 3, out[0].Weight)
	assert.Equal(t, 4, out[0].Iteration)
	assert.Equal(t, "c", out[1].Target)
	assert.EqualValues(t, 1, out[1].Weight)
}

func TestFold_UserAggregations(t *testing.T) {
	edges := []store.RawEdge{
		raw("a", "b", 10), raw("a", "b", 20), raw("a", "b", nil), raw("a", "b", "junk"),
	}

	tests := []struct {
		agg  store.Aggregation
		want any
	}{
		{store.AggSum, int64(30)},
		{store.AggMin, int64(10)},
		{store.AggMax, int64(20)},
		{store.AggAvg, 15.0},
		{store.AggCount, int64(3)}, // non-nil values, including the junk string
	}

	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			out := aggregate.Fold(edges, 0, map[string]store.Aggregation{"views": tt.agg})
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Attrs["views"])
		})
	}
}

func TestFold_NumericStringsCoerce(t *testing.T) {
	edges := []store.RawEdge{raw("a", "b", "10"), raw("a", "b", "32")}

	out := aggregate.Fold(edges, 0, map[string]store.Aggregation{"views": store.AggSum})
	require.Len(t, out, 1)
	assert.Equal(t, int64(42), out[0].Attrs["views"])
}

func TestFold_AllMissingYieldsNull(t *testing.T) {
	edges := []store.RawEdge{raw("a", "b", nil), raw("a", "b", nil)}

	out := aggregate.Fold(edges, 0, map[string]store.Aggregation{"views": store.AggSum})
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Attrs["views"])
}

func TestFold_Idempotent(t *testing.T) {
	edges := []store.RawEdge{
		raw("a", "b", 1), raw("b", "c", 2), raw("a", "b", 3),
	}
	aggs := map[string]store.Aggregation{"views": store.AggSum}

	first := aggregate.Fold(edges, 1, aggs)
	second := aggregate.Fold(edges, 1, aggs)
	assert.Equal(t, first, second)
}

func TestFold_Empty(t *testing.T) {
	assert.Empty(t, aggregate.Fold(nil, 0, nil))
}
