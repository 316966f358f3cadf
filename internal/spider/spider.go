// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

// Package spider drives the crawl: an iteration loop of gathering,
// aggregation, and sampling over a persistent seed queue.
package spider

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/spiderexpress-dev/spiderexpress/internal/aggregate"
	"github.com/spiderexpress-dev/spiderexpress/internal/config"
	"github.com/spiderexpress-dev/spiderexpress/internal/connector"
	"github.com/spiderexpress-dev/spiderexpress/internal/router"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	"github.com/spiderexpress-dev/spiderexpress/internal/strategy"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// maxRetries bounds how often the retrying phase reschedules unused seeds
// before the run stops.
const maxRetries = 3

// Spider owns the crawl loop. It is single-threaded: exactly one iteration
// is in flight, and phases execute sequentially.
type Spider struct {
	cfg   *config.Config
	store store.Store
	log   *slog.Logger
	rng   *rand.Rand

	phase      Phase
	state      *store.AppState
	retryCount int

	connectors map[string]*connector.Adapter
	strategies map[string]*strategy.Adapter

	// touched tracks layers that received raw data this iteration, so
	// sampling only aggregates what changed.
	touched map[string]bool
}

// Option configures a Spider.
type Option func(*Spider)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Spider) { s.log = log }
}

// WithRand sets the random source. Tests inject a seeded source for
// reproducible sampling.
func WithRand(rng *rand.Rand) Option {
	return func(s *Spider) { s.rng = rng }
}

// New builds a Spider for a validated configuration: it compiles every
// router, and resolves every connector and strategy binding against the
// registries. Unresolved names surface here, before the crawl starts.
func New(cfg *config.Config, st store.Store, opts ...Option) (*Spider, error) {
	s := &Spider{
		cfg:        cfg,
		store:      st,
		log:        slog.Default(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:      PhaseIdle,
		connectors: make(map[string]*connector.Adapter, len(cfg.Layers)),
		strategies: make(map[string]*strategy.Adapter, len(cfg.Layers)),
		touched:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	for name, layer := range cfg.Layers {
		schema := layer.Schema()

		routers := make([]*router.Router, 0, len(layer.Routers))
		for _, spec := range layer.Routers {
			rt, err := router.New(name, spec)
			if err != nil {
				return nil, err
			}
			routers = append(routers, rt)
		}

		connName, connCfg := layer.ConnectorBinding()
		conn, err := connector.New(name, connName, connCfg, routers, schema,
			cfg.BatchSize, cfg.RandomWait, s.rng)
		if err != nil {
			return nil, err
		}
		s.connectors[name] = conn

		stratName, stratCfg := layer.SamplerBinding()
		edgeCols := columnSet(schema.EdgeColumns)
		nodeCols := columnSet(schema.NodeColumns)
		strat, err := strategy.New(name, stratName, stratCfg, edgeCols, nodeCols, s.rng)
		if err != nil {
			return nil, err
		}
		s.strategies[name] = strat
	}

	return s, nil
}

// Phase returns the current controller phase.
func (s *Spider) Phase() Phase { return s.phase }

// Run drives the crawl to its terminal state. Cancellation via ctx is a
// clean exit: the in-flight batch rolls back and the next start resumes
// from the last committed iteration.
func (s *Spider) Run(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}

	for {
		if err := s.transition(ctx, PhaseGathering); err != nil {
			return err
		}
		if err := s.gather(ctx); err != nil {
			return s.finish(ctx, err)
		}

		if err := s.transition(ctx, PhaseSampling); err != nil {
			return err
		}
		produced, err := s.sample(ctx)
		if err != nil {
			return s.finish(ctx, err)
		}

		// One full (gather, sample) pair completed: commit the iteration.
		s.state.Iteration++
		if err := s.store.SaveState(ctx, s.state); err != nil {
			return err
		}
		s.log.Info("iteration complete",
			"iteration", s.state.Iteration, "new_seeds", produced)

		if s.state.Iteration >= s.cfg.MaxIteration {
			s.log.Info("iteration limit reached", "max_iteration", s.cfg.MaxIteration)
			break
		}

		if produced > 0 {
			s.retryCount = 0
			continue
		}

		if s.cfg.EmptySeeds == config.EmptySeedsStop {
			s.log.Info("no new seeds, stopping")
			break
		}
		if s.retryCount >= maxRetries {
			s.log.Warn("retry budget exhausted, stopping", "retries", s.retryCount)
			break
		}

		if err := s.transition(ctx, PhaseRetrying); err != nil {
			return err
		}
		if err := s.retryWithUnusedSeeds(ctx); err != nil {
			return s.finish(ctx, err)
		}
		s.retryCount++
	}

	return s.finish(ctx, nil)
}

// start loads configuration-derived state: it ensures the layer tables,
// recovers seeds stranded in processing by a previous run, and enqueues
// the initial seed set.
func (s *Spider) start(ctx context.Context) error {
	// The stored iteration must be read before any transition persists
	// state, or a resumed crawl would restart from zero.
	state, err := s.store.LoadState(ctx)
	if err != nil {
		return err
	}
	state.MaxIteration = s.cfg.MaxIteration
	s.state = state

	if err := s.transition(ctx, PhaseStarting); err != nil {
		return err
	}

	for name, layer := range s.cfg.Layers {
		if err := s.store.EnsureLayer(ctx, name, layer.Schema()); err != nil {
			return err
		}
	}

	released, err := s.store.ReleaseClaimedSeeds(ctx)
	if err != nil {
		return err
	}
	if released > 0 {
		s.log.Info("recovered interrupted batch", "seeds", released)
	}

	seeds := s.cfg.SeedMap()
	if s.cfg.SeedFile != "" {
		ids, err := config.ReadSeedFile(s.cfg.SeedFile)
		if err != nil {
			return err
		}
		seeds = make(map[string][]string, len(s.cfg.Layers))
		for layer := range s.cfg.Layers {
			seeds[layer] = ids
		}
	}
	return s.store.Tx(ctx, func(ctx context.Context) error {
		for layer, ids := range seeds {
			if err := s.store.EnqueueSeeds(ctx, layer, ids, s.state.Iteration); err != nil {
				return err
			}
		}
		return s.store.SaveState(ctx, s.state)
	})
}

// gather drains the frontier: it claims seed batches in round-robin over
// layers with pending seeds, fetches and routes their data, and persists
// each batch atomically. Cancellation is checked between batches.
func (s *Spider) gather(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "gathering interrupted")
		}

		layers, err := s.store.PendingLayers(ctx)
		if err != nil {
			return err
		}
		if len(layers) == 0 {
			return nil
		}

		progress := false
		for _, layer := range layers {
			if err := ctx.Err(); err != nil {
				return spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "gathering interrupted")
			}
			batch, err := s.store.ClaimNextSeedBatch(ctx, layer, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				continue
			}
			progress = true
			if err := s.processBatch(ctx, layer, batch); err != nil {
				return err
			}
		}
		if !progress {
			return nil
		}
	}
}

// processBatch fetches one claimed batch and lands its results in a single
// transaction. A connector failure after retries marks the batch failed
// and lets the iteration proceed.
func (s *Spider) processBatch(ctx context.Context, layer string, batch []store.Seed) error {
	ids := make([]string, len(batch))
	for i, seed := range batch {
		ids[i] = seed.NodeID
	}

	edges, nodes, err := s.connectors[layer].Fetch(ctx, ids)
	if err != nil {
		if spidererr.IsCancelled(err) {
			return err
		}
		s.log.Warn("batch failed",
			"layer", layer, "iteration", s.state.Iteration, "seeds", ids, "error", err)
		return s.store.Tx(ctx, func(ctx context.Context) error {
			for _, id := range ids {
				if err := s.store.CompleteSeed(ctx, layer, id, store.SeedFailed); err != nil {
					return err
				}
			}
			return nil
		})
	}

	// Eager target enqueueing is restricted to first-generation seeds so a
	// single batch cannot snowball the whole population before sampling
	// gets a say.
	eager := s.cfg.Layers[layer].Eager && batchIsFirstGeneration(batch)

	return s.store.Tx(ctx, func(ctx context.Context) error {
		byLayer := make(map[string][]store.RawEdge)
		var layerOrder []string
		for _, edge := range edges {
			raw := store.RawEdge{
				Source:    edge.Source,
				Target:    edge.Target,
				Layer:     edge.Layer,
				Iteration: s.state.Iteration,
				Attrs:     edge.Attrs,
			}
			if _, seen := byLayer[edge.Layer]; !seen {
				layerOrder = append(layerOrder, edge.Layer)
			}
			byLayer[edge.Layer] = append(byLayer[edge.Layer], raw)
		}

		for _, destination := range layerOrder {
			if err := s.store.AppendRawEdges(ctx, destination, byLayer[destination]); err != nil {
				return err
			}
			s.touched[destination] = true
		}

		for i := range nodes {
			nodes[i].Iteration = s.state.Iteration
		}
		if err := s.store.UpsertNodes(ctx, layer, nodes); err != nil {
			return err
		}

		// Dispatched edges always enqueue their target on the destination
		// layer; eager layers enqueue every routed target.
		for _, edge := range edges {
			if !edge.Dispatched && !eager {
				continue
			}
			if err := s.store.EnqueueSeeds(ctx, edge.Layer, []string{edge.Target}, s.state.Iteration); err != nil {
				return err
			}
		}

		for _, id := range ids {
			if err := s.store.CompleteSeed(ctx, layer, id, store.SeedDone); err != nil {
				return err
			}
		}
		return nil
	})
}

// sample aggregates and samples every layer touched this iteration, then
// enqueues the strategies' seeds for the next one.
func (s *Spider) sample(ctx context.Context) (int, error) {
	layers := make([]string, 0, len(s.touched))
	for layer := range s.touched {
		if _, declared := s.cfg.Layers[layer]; declared {
			layers = append(layers, layer)
		}
	}
	sort.Strings(layers)
	s.touched = make(map[string]bool)

	produced := 0
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return produced, spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "sampling interrupted")
		}

		n, err := s.sampleLayer(ctx, layer)
		if err != nil {
			if spidererr.IsCancelled(err) {
				return produced, err
			}
			// A misbehaving strategy costs this layer its iteration, not
			// the whole run.
			s.log.Warn("sampling failed",
				"layer", layer, "iteration", s.state.Iteration, "error", err)
			continue
		}
		produced += n
	}
	return produced, nil
}

func (s *Spider) sampleLayer(ctx context.Context, layer string) (int, error) {
	schema := s.cfg.Layers[layer].Schema()

	raw, err := s.store.RawEdges(ctx, layer)
	if err != nil {
		return 0, err
	}
	aggregated := aggregate.Fold(raw, s.state.Iteration, schema.AggColumns)

	nodes, err := s.store.Nodes(ctx, layer)
	if err != nil {
		return 0, err
	}
	doneIDs, err := s.store.DoneSeedIDs(ctx, layer)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(doneIDs))
	for _, id := range doneIDs {
		known[id] = true
	}

	strat := s.strategies[layer]
	stateRows, err := s.store.StrategyState(ctx, layer, strat.Name())
	if err != nil {
		return 0, err
	}

	result, err := strat.Invoke(ctx, aggregated, nodes, known, stateRows)
	if err != nil {
		return 0, err
	}

	s.log.Debug("layer sampled",
		"layer", layer, "iteration", s.state.Iteration,
		"edges", len(aggregated), "sampled_edges", len(result.SampledEdges),
		"new_seeds", len(result.NewSeeds))

	err = s.store.Tx(ctx, func(ctx context.Context) error {
		for i := range result.SampledEdges {
			result.SampledEdges[i].Iteration = s.state.Iteration
		}
		if err := s.store.UpsertAggregatedEdges(ctx, layer, result.SampledEdges); err != nil {
			return err
		}

		// Every endpoint of a sampled edge must exist in the node table;
		// endpoints the connector never described get placeholder rows.
		if err := s.store.UpsertNodes(ctx, layer, missingEndpoints(result.SampledEdges, nodes, s.state.Iteration)); err != nil {
			return err
		}

		names := make([]string, len(result.SampledNodes))
		for i, n := range result.SampledNodes {
			names[i] = n.Name
		}
		if err := s.store.MarkNodesSampled(ctx, layer, names); err != nil {
			return err
		}

		if err := s.store.ReplaceStrategyState(ctx, layer, strat.Name(), result.NewState); err != nil {
			return err
		}

		return s.store.EnqueueSeeds(ctx, layer, result.NewSeeds, s.state.Iteration+1)
	})
	if err != nil {
		return 0, err
	}
	return len(result.NewSeeds), nil
}

// retryWithUnusedSeeds gives drained layers one more chance to grow: it
// enqueues observed nodes that never entered the seed queue, and demotes
// done seeds that yielded no raw edges back to pending.
func (s *Spider) retryWithUnusedSeeds(ctx context.Context) error {
	for layer := range s.cfg.Layers {
		nodes, err := s.store.Nodes(ctx, layer)
		if err != nil {
			return err
		}
		seeds, err := s.store.Seeds(ctx, layer)
		if err != nil {
			return err
		}
		queued := make(map[string]bool, len(seeds))
		for _, seed := range seeds {
			queued[seed.NodeID] = true
		}

		var candidates []string
		for _, node := range nodes {
			if !queued[node.Name] {
				candidates = append(candidates, node.Name)
			}
		}

		raw, err := s.store.RawEdges(ctx, layer)
		if err != nil {
			return err
		}
		observed := make(map[string]bool, len(raw))
		for _, edge := range raw {
			observed[edge.Source] = true
		}
		var stale []string
		for _, seed := range seeds {
			if seed.Status == store.SeedDone && !observed[seed.NodeID] {
				stale = append(stale, seed.NodeID)
			}
		}

		if len(candidates) == 0 && len(stale) == 0 {
			continue
		}
		s.log.Debug("rescheduling unused seeds",
			"layer", layer, "unqueued", len(candidates), "stale", len(stale), "retry", s.retryCount+1)

		err = s.store.Tx(ctx, func(ctx context.Context) error {
			if err := s.store.EnqueueSeeds(ctx, layer, candidates, s.state.Iteration); err != nil {
				return err
			}
			return s.store.ResetSeeds(ctx, layer, stale)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// finish latches the terminal phase; the store stays open and is closed by
// its owner. A cancellation is a clean exit; any other error passes through.
func (s *Spider) finish(ctx context.Context, runErr error) error {
	if runErr != nil && spidererr.IsCancelled(runErr) {
		s.log.Info("run cancelled, state kept at last committed iteration",
			"iteration", s.state.Iteration)
		runErr = nil
	}

	// Persist the terminal phase even when the run context is gone.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.transition(flushCtx, PhaseStopping); err != nil && runErr == nil {
		runErr = err
	}

	s.log.Info("spider stopped", "iteration", s.state.Iteration)
	return runErr
}

func batchIsFirstGeneration(batch []store.Seed) bool {
	for _, seed := range batch {
		if seed.Iteration != 0 {
			return false
		}
	}
	return true
}

func columnSet(cols map[string]store.ColumnType) map[string]bool {
	out := make(map[string]bool, len(cols))
	for name := range cols {
		out[name] = true
	}
	return out
}

func missingEndpoints(edges []store.AggregatedEdge, nodes []store.Node, iteration int) []store.Node {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.Name] = true
	}

	var placeholders []store.Node
	for _, e := range edges {
		for _, name := range []string{e.Source, e.Target} {
			if present[name] {
				continue
			}
			present[name] = true
			placeholders = append(placeholders, store.Node{
				Name: name, Layer: e.Layer, Iteration: iteration,
			})
		}
	}
	return placeholders
}
