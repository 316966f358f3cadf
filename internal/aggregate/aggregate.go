// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

// Package aggregate folds raw edges into weighted, deduplicated edges.
package aggregate

import (
	"strconv"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

type key struct {
	source string
	target string
	layer  string
}

// Fold recomputes aggregated edges from the complete raw edge log of a
// layer. Weight is the multiplicity of (source, target, layer); each
// configured column is folded with its declared function. Because the fold
// always runs over the full log, re-running it is idempotent.
//
// Group order follows first appearance in the log, so repeated folds over
// the same log yield identical output.
func Fold(raw []store.RawEdge, iteration int, aggs map[string]store.Aggregation) []store.AggregatedEdge {
	groups := make(map[key][]store.RawEdge)
	var order []key

	for _, edge := range raw {
		k := key{source: edge.Source, target: edge.Target, layer: edge.Layer}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], edge)
	}

	out := make([]store.AggregatedEdge, 0, len(order))
	for _, k := range order {
		rows := groups[k]
		agg := store.AggregatedEdge{
			Source:    k.source,
			Target:    k.target,
			Layer:     k.layer,
			Weight:    int64(len(rows)),
			Iteration: iteration,
		}
		if len(aggs) > 0 {
			agg.Attrs = make(map[string]any, len(aggs))
			for col, fn := range aggs {
				agg.Attrs[col] = fold(rows, col, fn)
			}
		}
		out = append(out, agg)
	}
	return out
}

func fold(rows []store.RawEdge, col string, fn store.Aggregation) any {
	if fn == store.AggCount {
		var n int64
		for _, row := range rows {
			if row.Attrs[col] != nil {
				n++
			}
		}
		return n
	}

	var vals []float64
	for _, row := range rows {
		if v, ok := numeric(row.Attrs[col]); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}

	switch fn {
	case store.AggSum:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return int64(sum)
	case store.AggMin:
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return int64(min)
	case store.AggMax:
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return int64(max)
	case store.AggAvg:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	}
	return nil
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
