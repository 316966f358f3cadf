// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package store

import "context"

// Store is the durable table-oriented storage the crawl runs against.
//
// Implementations must commit multi-row mutations atomically. Tx runs fn in
// a transaction scope; nested Tx calls share the outermost transaction, so
// every operation called with the transactional context joins it.
type Store interface {
	// EnsureLayer creates the per-layer table family for the given schema
	// if it does not exist yet; an existing table is not checked against
	// the schema. It must run before any write to the layer: the spider
	// calls it for every declared layer when a crawl starts.
	EnsureLayer(ctx context.Context, layer string, schema LayerSchema) error

	// UpsertNodes inserts or replaces nodes by (layer, name). The Sampled
	// flag of an existing row is preserved.
	UpsertNodes(ctx context.Context, layer string, rows []Node) error

	// MarkNodesSampled moves the named nodes into the sparse node set.
	MarkNodesSampled(ctx context.Context, layer string, names []string) error

	// Nodes returns all nodes observed on a layer (the dense set).
	Nodes(ctx context.Context, layer string) ([]Node, error)

	// AppendRawEdges appends routed edges to the layer's raw edge log,
	// preserving order.
	AppendRawEdges(ctx context.Context, layer string, rows []RawEdge) error

	// RawEdges returns the complete raw edge log for a layer in append order.
	RawEdges(ctx context.Context, layer string) ([]RawEdge, error)

	// UpsertAggregatedEdges replaces aggregated edges by (source, target,
	// layer).
	UpsertAggregatedEdges(ctx context.Context, layer string, rows []AggregatedEdge) error

	// ReadLayerFrame returns the sparse view of a layer: the sampled
	// (aggregated) edges and the sampled nodes.
	ReadLayerFrame(ctx context.Context, layer string) (LayerFrame, error)

	// EnqueueSeeds inserts pending seeds. A (layer, id) already pending,
	// processing, or done is dropped silently; a failed one is rescheduled.
	EnqueueSeeds(ctx context.Context, layer string, ids []string, iteration int) error

	// ClaimNextSeedBatch atomically moves up to n pending seeds to
	// processing, in FIFO order, and returns them.
	ClaimNextSeedBatch(ctx context.Context, layer string, n int) ([]Seed, error)

	// CompleteSeed moves a processing seed to done or failed and stamps its
	// visit time.
	CompleteSeed(ctx context.Context, layer, id string, status SeedStatus) error

	// ReleaseClaimedSeeds demotes every processing seed back to pending.
	// Called on startup to recover from an interrupted run.
	ReleaseClaimedSeeds(ctx context.Context) (int64, error)

	// ResetSeeds demotes the named done seeds back to pending for one more
	// visit. Used by the retrying phase for seeds that yielded no data.
	ResetSeeds(ctx context.Context, layer string, ids []string) error

	// PendingLayers returns the layers that currently have pending seeds.
	PendingLayers(ctx context.Context) ([]string, error)

	// DoneSeedIDs returns the node ids with status done for a layer.
	DoneSeedIDs(ctx context.Context, layer string) ([]string, error)

	// Seeds returns all seeds for a layer in FIFO order.
	Seeds(ctx context.Context, layer string) ([]Seed, error)

	// StrategyState returns the stored state rows for (layer, strategy).
	StrategyState(ctx context.Context, layer, strategy string) ([]StateRow, error)

	// ReplaceStrategyState drops the stored state for (layer, strategy) and
	// writes rows in its place.
	ReplaceStrategyState(ctx context.Context, layer, strategy string, rows []StateRow) error

	// LoadState returns the AppState singleton, creating it at iteration 0
	// if absent.
	LoadState(ctx context.Context) (*AppState, error)

	// SaveState persists the AppState singleton.
	SaveState(ctx context.Context, state *AppState) error

	// Tx runs fn inside a transaction. All writes in fn commit together or
	// not at all. Nested calls join the outermost transaction.
	Tx(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}
