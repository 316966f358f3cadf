// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package strategy

import (
	"context"
	"fmt"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

// Spikyball sampling: weighted random edge selection following
// Ricaud, Aspert & Miz, "Spikyball sampling: Exploring large networks via
// an inhomogeneous filtered diffusion" (arXiv:2010.11786).

const defaultLayerMaxSize = 150

func init() {
	plugin.RegisterStrategy(plugin.StrategyPlugin{
		Name:          "spikyball",
		Call:          spikyballStrategy,
		DefaultConfig: map[string]any{"layer_max_size": defaultLayerMaxSize},
		StateColumns:  map[string]store.ColumnType{"node_id": store.ColumnText},
	})
	RegisterValidator("spikyball", validateSpikyball)
}

// probConfig is one probability mass term: a coefficient and per-column
// weights.
type probConfig struct {
	coefficient float64
	weights     map[string]float64
}

func parseProb(cfg map[string]any, key string) probConfig {
	p := probConfig{weights: map[string]float64{}}
	section, ok := cfg[key].(map[string]any)
	if !ok {
		return p
	}

	rec := plugin.Record(section)
	if c, ok := rec.Float("coefficient"); ok {
		p.coefficient = c
	} else if _, hasWeights := section["weights"]; hasWeights {
		// A section that declares weights but no coefficient keeps its term
		// active.
		p.coefficient = 1
	}

	if weights, ok := section["weights"].(map[string]any); ok {
		wrec := plugin.Record(weights)
		for col := range weights {
			if w, ok := wrec.Float(col); ok {
				p.weights[col] = w
			}
		}
	}
	return p
}

func validateSpikyball(cfg map[string]any, edgeCols, nodeCols map[string]bool) error {
	checks := []struct {
		key  string
		cols map[string]bool
	}{
		{"source_node_probability", nodeCols},
		{"target_node_probability", nodeCols},
		{"edge_probability", edgeCols},
	}
	for _, check := range checks {
		p := parseProb(cfg, check.key)
		for col := range p.weights {
			if check.key == "edge_probability" && col == "weight" {
				continue
			}
			if !check.cols[col] {
				return fmt.Errorf("%s references column %q which is not declared", check.key, col)
			}
		}
	}
	return nil
}

// term computes coefficient * Σ weight[col]·value[col] for one row. A row
// missing a referenced column counts that column as 0; an empty weight
// vector contributes 0.
func (p probConfig) term(rec plugin.Record) float64 {
	if len(p.weights) == 0 {
		return 0
	}
	var sum float64
	for col, w := range p.weights {
		if v, ok := rec.Float(col); ok {
			sum += w * v
		}
	}
	return p.coefficient * sum
}

func edgeRecord(e store.AggregatedEdge) plugin.Record {
	rec := plugin.Record{"weight": e.Weight}
	for k, v := range e.Attrs {
		rec[k] = v
	}
	return rec
}

func spikyballStrategy(_ context.Context, in plugin.StrategyInput) (plugin.StrategyResult, error) {
	cfg := plugin.Record(in.Config)
	maxSize := defaultLayerMaxSize
	if v, ok := cfg.Int("layer_max_size"); ok {
		maxSize = int(v)
	}

	srcProb := parseProb(in.Config, "source_node_probability")
	tgtProb := parseProb(in.Config, "target_node_probability")
	edgeProb := parseProb(in.Config, "edge_probability")

	nodesByName := make(map[string]plugin.Record, len(in.Nodes))
	for _, n := range in.Nodes {
		nodesByName[n.Name] = plugin.Record(n.Attrs)
	}

	inward, outward := splitEdges(in.Edges, in.KnownNodes)

	// Unnormalized mass per candidate edge; rows with no positive mass are
	// not sampled.
	var candidates []store.AggregatedEdge
	var mass []float64
	var total float64
	for _, e := range outward {
		p := srcProb.term(nodesByName[e.Source]) +
			tgtProb.term(nodesByName[e.Target]) +
			edgeProb.term(edgeRecord(e))
		if p <= 0 {
			continue
		}
		candidates = append(candidates, e)
		mass = append(mass, p)
		total += p
	}

	// No positive mass anywhere (e.g. an unweighted configuration) degrades
	// to uniform sampling over the outward edges.
	if len(candidates) == 0 && len(outward) > 0 {
		candidates = outward
		mass = make([]float64, len(outward))
		for i := range mass {
			mass[i] = 1
		}
		total = float64(len(outward))
	}

	sampled := candidates
	if len(uniqueTargets(candidates)) > maxSize {
		probs := make([]float64, len(mass))
		for i, m := range mass {
			probs[i] = m / total
		}
		w := sampleuv.NewWeighted(probs, exprand.NewSource(uint64(in.Rand.Int63())))
		sampled = make([]store.AggregatedEdge, 0, maxSize)
		for len(sampled) < maxSize {
			idx, ok := w.Take()
			if !ok {
				break
			}
			sampled = append(sampled, candidates[idx])
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
