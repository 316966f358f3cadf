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
		Name:          "random",
		Call:          randomStrategy,
		DefaultConfig: map[string]any{"n": 10},
		StateColumns:  map[string]store.ColumnType{"node_id": store.ColumnText},
	})
}

// randomStrategy keeps inward edges verbatim and follows up to n uniformly
// sampled outward edges. The targets of the sampled outward edges become
// the next frontier.
func randomStrategy(_ context.Context, in plugin.StrategyInput) (plugin.StrategyResult, error) {
	n := 10
	if v, ok := plugin.Record(in.Config).Int("n"); ok {
		n = int(v)
	}

	inward, outward := splitEdges(in.Edges, in.KnownNodes)

	sampled := outward
	if len(outward) > n {
		sampled = make([]store.AggregatedEdge, 0, n)
		for _, idx := range in.Rand.Perm(len(outward))[:n] {
			sampled = append(sampled, outward[idx])
		}
	}

	seeds := uniqueTargets(sampled)

	return plugin.StrategyResult{
		NewSeeds:     seeds,
		SampledEdges: append(inward, sampled...),
		SampledNodes: nodesNamed(in.Nodes, seeds),
		NewState:     seedState(in.State, in.Edges, seeds),
	}, nil
}
