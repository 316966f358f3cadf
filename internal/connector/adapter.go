// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

// Package connector hosts the connector adapter and the built-in csv
// connector.
package connector

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	"github.com/spiderexpress-dev/spiderexpress/internal/router"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

const (
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
	waitBase      = time.Second
)

// Adapter binds one layer to its configured connector: it batches node
// ids, retries transient failures, routes the returned edge rows, and
// coerces node rows to the layer's declared columns.
type Adapter struct {
	layer      string
	plug       plugin.ConnectorPlugin
	config     map[string]any
	routers    []*router.Router
	schema     store.LayerSchema
	batchSize  int
	randomWait bool
	rng        *rand.Rand

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New resolves the connector binding for a layer and merges the declared
// configuration over the plug-in defaults.
func New(layer, name string, userCfg map[string]any, routers []*router.Router,
	schema store.LayerSchema, batchSize int, randomWait bool, rng *rand.Rand) (*Adapter, error) {

	plug, err := plugin.LookupConnector(name)
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

	return &Adapter{
		layer:      layer,
		plug:       plug,
		config:     merged,
		routers:    routers,
		schema:     schema,
		batchSize:  batchSize,
		randomWait: randomWait,
		rng:        rng,
		sleep:      sleepCtx,
	}, nil
}

// Name returns the bound connector name.
func (a *Adapter) Name() string { return a.plug.Name }

// Fetch gathers data for ids: it invokes the connector in batches, pipes
// each returned edge row through the layer's routers, and returns the
// routed edges together with the coerced node rows. Edge order follows the
// connector's row order; routed edge attributes are coerced to the layer's
// declared edge columns.
func (a *Adapter) Fetch(ctx context.Context, ids []string) ([]router.Edge, []store.Node, error) {
	var edges []router.Edge
	var nodes []store.Node

	for start := 0; start < len(ids); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "gathering interrupted")
		}

		end := min(start+a.batchSize, len(ids))
		batch := ids[start:end]

		if start > 0 && a.randomWait {
			// Uniform delay in [0, 2·base) keeps request cadence
			// unpredictable for rate-limited sources.
			d := time.Duration(a.rng.Float64() * 2 * float64(waitBase))
			if err := a.sleep(ctx, d); err != nil {
				return nil, nil, spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "gathering interrupted")
			}
		}

		edgeFrame, nodeFrame, err := a.callWithRetry(ctx, batch)
		if err != nil {
			return nil, nil, err
		}

		for _, rec := range edgeFrame {
			for _, rt := range a.routers {
				for _, edge := range rt.Parse(rec) {
					edge.Attrs = a.coerceAttrs(edge.Attrs, a.schema.EdgeColumns)
					edges = append(edges, edge)
				}
			}
		}

		nodes = append(nodes, a.coerceNodes(nodeFrame, batch)...)
	}

	return edges, nodes, nil
}

// callWithRetry invokes the connector for one batch, retrying transient
// failures with exponential backoff.
func (a *Adapter) callWithRetry(ctx context.Context, batch []string) (plugin.Frame, plugin.Frame, error) {
	var lastErr error

	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(float64(delay) * 0.25 * (2*a.rng.Float64() - 1))
			if err := a.sleep(ctx, delay+jitter); err != nil {
				return nil, nil, spidererr.Wrapf(err, spidererr.CodeSpiderCancelled, "retry interrupted")
			}
			delay *= 2
		}

		edges, nodes, err := a.plug.Call(ctx, batch, a.config)
		if err == nil {
			return edges, nodes, nil
		}
		lastErr = err
		if !spidererr.IsTransient(err) {
			return nil, nil, spidererr.Wrapf(err, spidererr.CodePluginCallFailure,
				"layer %s: connector %s", a.layer, a.plug.Name)
		}
		slog.Warn("connector call failed, retrying",
			"layer", a.layer, "connector", a.plug.Name,
			"attempt", attempt+1, "batch_size", len(batch), "error", err)
	}

	return nil, nil, spidererr.Wrap(lastErr, spidererr.CodeConnectorCallTransient,
		"retry budget exhausted",
		spidererr.FieldLayer(a.layer), spidererr.FieldPlugin(a.plug.Name),
		spidererr.Field("batch", batch))
}

// coerceNodes validates that the node frame only describes requested
// nodes, dropping violations with a warning, and coerces declared columns.
func (a *Adapter) coerceNodes(frame plugin.Frame, requested []string) []store.Node {
	allowed := make(map[string]bool, len(requested))
	for _, id := range requested {
		allowed[id] = true
	}

	var nodes []store.Node
	for _, rec := range frame {
		name, ok := rec.String("name")
		if !ok || !allowed[name] {
			slog.Warn("connector returned node outside requested batch, dropping",
				"layer", a.layer, "connector", a.plug.Name, "name", name)
			continue
		}
		nodes = append(nodes, store.Node{
			Name:  name,
			Layer: a.layer,
			Attrs: a.coerceAttrs(map[string]any(rec), a.schema.NodeColumns),
		})
	}
	return nodes
}

// coerceAttrs keeps only declared columns, coerced to their declared type.
// A value that cannot be coerced becomes null and logs a warning.
func (a *Adapter) coerceAttrs(attrs map[string]any, cols map[string]store.ColumnType) map[string]any {
	if len(cols) == 0 {
		return nil
	}
	rec := plugin.Record(attrs)
	out := make(map[string]any, len(cols))
	for col, typ := range cols {
		raw, present := rec.Get(col)
		if !present || raw == nil {
			out[col] = nil
			continue
		}
		switch typ {
		case store.ColumnInteger:
			if v, ok := rec.Int(col); ok {
				out[col] = v
				continue
			}
		case store.ColumnText:
			if v, ok := rec.String(col); ok {
				out[col] = v
				continue
			}
		}
		slog.Warn("column value failed coercion, substituting null",
			"layer", a.layer, "column", col, "type", typ, "value", raw)
		out[col] = nil
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
