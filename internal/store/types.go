// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package store

import "time"

// ColumnType is the declared type of a user-configured layer column.
type ColumnType string

const (
	ColumnText    ColumnType = "Text"
	ColumnInteger ColumnType = "Integer"
)

// ValidColumnType reports whether t is a recognized column type.
func ValidColumnType(t ColumnType) bool {
	return t == ColumnText || t == ColumnInteger
}

// Aggregation names the fold applied to a raw-edge column when building
// aggregated edges.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggAvg   Aggregation = "avg"
	AggCount Aggregation = "count"
)

// ValidAggregation reports whether a is a recognized aggregation function.
func ValidAggregation(a Aggregation) bool {
	switch a {
	case AggSum, AggMin, AggMax, AggAvg, AggCount:
		return true
	}
	return false
}

// LayerSchema describes the user-declared columns of a layer's tables.
// Core columns (source, target, layer, weight, name, iteration) are always
// present and not part of the schema.
type LayerSchema struct {
	EdgeColumns map[string]ColumnType
	AggColumns  map[string]Aggregation
	NodeColumns map[string]ColumnType
}

// RawEdge is one edge as routed off a connector record, before aggregation.
// Attrs carries the layer-configured extra columns.
type RawEdge struct {
	ID        int64
	Source    string
	Target    string
	Layer     string
	Iteration int
	Attrs     map[string]any
}

// AggregatedEdge is a deduplicated, weighted edge. Weight is the number of
// raw edges sharing (source, target, layer).
type AggregatedEdge struct {
	Source    string
	Target    string
	Layer     string
	Weight    int64
	Iteration int
	Attrs     map[string]any
}

// Node is one observed node on a layer. Sampled marks membership in the
// sparse (strategy-selected) node set.
type Node struct {
	Name      string
	Layer     string
	Iteration int
	Sampled   bool
	Attrs     map[string]any
}

// SeedStatus tracks a seed through its visit lifecycle.
type SeedStatus string

const (
	SeedPending    SeedStatus = "pending"
	SeedProcessing SeedStatus = "processing"
	SeedDone       SeedStatus = "done"
	SeedFailed     SeedStatus = "failed"
)

// Seed is one frontier entry: a node scheduled to be visited on a layer.
type Seed struct {
	NodeID    string
	Layer     string
	Iteration int
	Status    SeedStatus
	ClaimID   string
	CreatedAt time.Time
	VisitedAt *time.Time
}

// AppState is the singleton crawl progress row.
type AppState struct {
	Iteration    int
	MaxIteration int
	Phase        string
	LastUpdated  time.Time
}

// StateRow is one opaque strategy-state record. Strategies declare its
// shape; the store only round-trips it.
type StateRow map[string]any

// LayerFrame is the sparse view of a layer: the sampled edges and nodes.
type LayerFrame struct {
	Edges []AggregatedEdge
	Nodes []Node
}
