// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

// Package strategy hosts the sampling-strategy adapter and the built-in
// strategies.
package strategy

import (
	"context"
	"math/rand"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Validator pre-checks a strategy configuration against the layer's
// declared columns before the first invocation.
type Validator func(cfg map[string]any, edgeCols, nodeCols map[string]bool) error

// validators holds per-strategy configuration validators, keyed like the
// registry. Built-ins install theirs from init().
var validators = map[string]Validator{}

// RegisterValidator attaches a configuration validator to a strategy name.
func RegisterValidator(name string, v Validator) {
	validators[name] = v
}

// Adapter binds one layer to its configured strategy: it merges the
// declared configuration over the plug-in defaults, pre-validates it, and
// checks the closure contract on every result.
type Adapter struct {
	layer  string
	plug   plugin.StrategyPlugin
	config map[string]any
	rng    *rand.Rand
}

// New resolves and validates the strategy binding for a layer. edgeCols and
// nodeCols are the user-declared column names of the layer's tables, used
// to reject configurations referencing absent columns before any sampling
// runs.
func New(layer, name string, userCfg map[string]any, edgeCols, nodeCols map[string]bool, rng *rand.Rand) (*Adapter, error) {
	plug, err := plugin.LookupStrategy(name)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(plug.DefaultConfig)+len(userCfg))
	for k, v := range plug.DefaultConfig {
		merged[k] = v
	}
	for k, v := range userCfg {
		merged[k] = v
	}

	if validate, ok := validators[name]; ok {
		if err := validate(merged, edgeCols, nodeCols); err != nil {
			return nil, spidererr.Wrapf(err, spidererr.CodeStrategyConfigInvalid,
				"layer %s: strategy %s configuration", layer, name)
		}
	}

	return &Adapter{layer: layer, plug: plug, config: merged, rng: rng}, nil
}

// Name returns the bound strategy name.
func (a *Adapter) Name() string { return a.plug.Name }

// Invoke runs the strategy over the layer's aggregated view and verifies
// the closure contract: sampled edges come from the input edges, new seeds
// are targets of sampled edges, and sampled nodes are new seeds or already
// known.
func (a *Adapter) Invoke(ctx context.Context, edges []store.AggregatedEdge, nodes []store.Node,
	known map[string]bool, state []store.StateRow) (plugin.StrategyResult, error) {

	in := plugin.StrategyInput{
		Edges:      edges,
		Nodes:      nodes,
		KnownNodes: known,
		State:      state,
		Config:     a.config,
		Rand:       a.rng,
	}

	result, err := a.plug.Call(ctx, in)
	if err != nil {
		return plugin.StrategyResult{}, spidererr.Wrapf(err, spidererr.CodeStrategyCallFailure,
			"layer %s: strategy %s", a.layer, a.plug.Name)
	}

	if err := a.checkClosure(in, result); err != nil {
		return plugin.StrategyResult{}, err
	}
	return result, nil
}

func (a *Adapter) checkClosure(in plugin.StrategyInput, result plugin.StrategyResult) error {
	inputKeys := make(map[[3]string]bool, len(in.Edges))
	for _, e := range in.Edges {
		inputKeys[[3]string{e.Source, e.Target, e.Layer}] = true
	}

	sampledTargets := make(map[string]bool, len(result.SampledEdges))
	for _, e := range result.SampledEdges {
		if !inputKeys[[3]string{e.Source, e.Target, e.Layer}] {
			return spidererr.Errorf(spidererr.CodePluginFrameInvalid,
				"layer %s: strategy %s sampled edge %s->%s not in input", a.layer, a.plug.Name, e.Source, e.Target)
		}
		sampledTargets[e.Target] = true
	}

	seedSet := make(map[string]bool, len(result.NewSeeds))
	for _, seed := range result.NewSeeds {
		if !sampledTargets[seed] {
			return spidererr.Errorf(spidererr.CodePluginFrameInvalid,
				"layer %s: strategy %s seed %s is not a sampled edge target", a.layer, a.plug.Name, seed)
		}
		seedSet[seed] = true
	}

	for _, node := range result.SampledNodes {
		if !seedSet[node.Name] && !in.KnownNodes[node.Name] {
			return spidererr.Errorf(spidererr.CodePluginFrameInvalid,
				"layer %s: strategy %s sampled node %s is neither a new seed nor known", a.layer, a.plug.Name, node.Name)
		}
	}
	return nil
}

// splitEdges partitions edges by whether the target is already known:
// inward edges point at crawled nodes, outward edges at the frontier.
func splitEdges(edges []store.AggregatedEdge, known map[string]bool) (inward, outward []store.AggregatedEdge) {
	for _, e := range edges {
		if known[e.Target] {
			inward = append(inward, e)
		} else {
			outward = append(outward, e)
		}
	}
	return inward, outward
}

// uniqueTargets returns the distinct targets of edges in order.
func uniqueTargets(edges []store.AggregatedEdge) []string {
	seen := make(map[string]bool, len(edges))
	var out []string
	for _, e := range edges {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// nodesNamed filters nodes to those whose name is in keep, preserving
// order.
func nodesNamed(nodes []store.Node, keep []string) []store.Node {
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}
	var out []store.Node
	for _, n := range nodes {
		if keepSet[n.Name] {
			out = append(out, n)
		}
	}
	return out
}

// seedState rebuilds the strategy's node_id state rows. On the first
// round the crawl sources are prepended so they count as seen.
func seedState(prev []store.StateRow, edges []store.AggregatedEdge, seeds []string) []store.StateRow {
	var rows []store.StateRow
	if len(prev) == 0 {
		seen := make(map[string]bool, len(edges))
		for _, e := range edges {
			if !seen[e.Source] {
				seen[e.Source] = true
				rows = append(rows, store.StateRow{"node_id": e.Source})
			}
		}
	}
	for _, seed := range seeds {
		rows = append(rows, store.StateRow{"node_id": seed})
	}
	return rows
}
