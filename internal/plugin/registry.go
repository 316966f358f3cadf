// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package plugin

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Connector fetches edge and node data for a batch of node identifiers.
// The returned frames are routed and coerced by the connector adapter.
type Connector func(ctx context.Context, nodeIDs []string, configuration map[string]any) (edges Frame, nodes Frame, err error)

// StrategyInput is everything a sampling strategy may read. Strategies are
// pure functions of their input; memory between iterations travels through
// State only.
type StrategyInput struct {
	Edges      []store.AggregatedEdge
	Nodes      []store.Node
	KnownNodes map[string]bool
	State      []store.StateRow
	Config     map[string]any
	Rand       *rand.Rand
}

// StrategyResult is what a strategy decided: the next frontier and the rows
// to persist into the sparse tables.
type StrategyResult struct {
	NewSeeds     []string
	SampledEdges []store.AggregatedEdge
	SampledNodes []store.Node
	NewState     []store.StateRow
}

// Strategy selects the neighbors to visit next from a layer's aggregated
// view.
type Strategy func(ctx context.Context, in StrategyInput) (StrategyResult, error)

// ConnectorPlugin carries a registered connector and its metadata.
type ConnectorPlugin struct {
	Name          string
	Call          Connector
	DefaultConfig map[string]any
}

// StrategyPlugin carries a registered strategy, its metadata, and the
// declared shape of its state table.
type StrategyPlugin struct {
	Name          string
	Call          Strategy
	DefaultConfig map[string]any
	StateColumns  map[string]store.ColumnType
}

var (
	mu         sync.RWMutex
	connectors = map[string]ConnectorPlugin{}
	strategies = map[string]StrategyPlugin{}
)

// RegisterConnector registers a connector under its name. Built-in packages
// call this from init(). This function is goroutine-safe.
func RegisterConnector(p ConnectorPlugin) {
	mu.Lock()
	defer mu.Unlock()
	connectors[p.Name] = p
}

// RegisterStrategy registers a strategy under its name.
func RegisterStrategy(p StrategyPlugin) {
	mu.Lock()
	defer mu.Unlock()
	strategies[p.Name] = p
}

// LookupConnector resolves a configured connector name.
func LookupConnector(name string) (ConnectorPlugin, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := connectors[name]
	if !ok {
		return ConnectorPlugin{}, spidererr.Errorf(spidererr.CodePluginNotFound,
			"connector %q is not registered", name)
	}
	return p, nil
}

// LookupStrategy resolves a configured strategy name.
func LookupStrategy(name string) (StrategyPlugin, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := strategies[name]
	if !ok {
		return StrategyPlugin{}, spidererr.Errorf(spidererr.CodePluginNotFound,
			"strategy %q is not registered", name)
	}
	return p, nil
}

// Connectors returns the registered connector names, sorted.
func Connectors() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategies returns the registered strategy names, sorted.
func Strategies() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
