// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package strategy

import (
	"context"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

func init() {
	plugin.RegisterStrategy(plugin.StrategyPlugin{
		Name:          "snowball",
		Call:          snowballStrategy,
		DefaultConfig: map[string]any{},
		StateColumns:  map[string]store.ColumnType{"node_id": store.ColumnText},
	})
}

// snowballStrategy follows every outward edge. An optional layer_max_size
// caps how many distinct targets become seeds; the sampled edge set is
// restricted to edges reaching those targets.
func snowballStrategy(_ context.Context, in plugin.StrategyInput) (plugin.StrategyResult, error) {
	inward, outward := splitEdges(in.Edges, in.KnownNodes)

	seeds := uniqueTargets(outward)
	sampled := outward
	if v, ok := plugin.Record(in.Config).Int("layer_max_size"); ok && len(seeds) > int(v) {
		seeds = seeds[:int(v)]
		keep := make(map[string]bool, len(seeds))
		for _, s := range seeds {
			keep[s] = true
		}
		sampled = nil
		for _, e := range outward {
			if keep[e.Target] {
				sampled = append(sampled, e)
			}
		}
	}

	return plugin.StrategyResult{
		NewSeeds:     seeds,
		SampledEdges: append(inward, sampled...),
		SampledNodes: nodesNamed(in.Nodes, seeds),
		NewState:     seedState(in.State, in.Edges, seeds),
	}, nil
}
