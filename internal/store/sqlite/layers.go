// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

// Per-layer tables are created by EnsureLayer; writes do not create them,
// and a write to a layer EnsureLayer has not set up fails with
// store.ErrNotFound. User columns extend a fixed core: raw edges are an
// append-only log, aggregated edges are keyed by (source, target, layer),
// nodes by name.

func rawEdgeTable(layer string) string { return "raw_edges_" + layer }
func aggEdgeTable(layer string) string { return "agg_edges_" + layer }
func nodeTable(layer string) string    { return "nodes_" + layer }

func (s *Store) EnsureLayer(ctx context.Context, layer string, schema store.LayerSchema) error {
	if !validIdent(layer) {
		return fmt.Errorf("%w: layer name %q", store.ErrInvalidInput, layer)
	}
	for _, cols := range []map[string]store.ColumnType{schema.EdgeColumns, schema.NodeColumns} {
		for name, typ := range cols {
			if !validIdent(name) {
				return fmt.Errorf("%w: column name %q", store.ErrInvalidInput, name)
			}
			if !store.ValidColumnType(typ) {
				return fmt.Errorf("%w: column %s type %q", store.ErrInvalidInput, name, typ)
			}
		}
	}
	for name, agg := range schema.AggColumns {
		if !validIdent(name) {
			return fmt.Errorf("%w: column name %q", store.ErrInvalidInput, name)
		}
		if !store.ValidAggregation(agg) {
			return fmt.Errorf("%w: column %s aggregation %q", store.ErrInvalidInput, name, agg)
		}
	}

	s.mu.RLock()
	_, known := s.layers[layer]
	s.mu.RUnlock()
	if known {
		return nil
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source    TEXT NOT NULL,
	target    TEXT NOT NULL,
	layer     TEXT NOT NULL,
	iteration INTEGER NOT NULL%s
);

CREATE TABLE IF NOT EXISTS %s (
	source    TEXT NOT NULL,
	target    TEXT NOT NULL,
	layer     TEXT NOT NULL,
	weight    INTEGER NOT NULL,
	iteration INTEGER NOT NULL%s,
	PRIMARY KEY (source, target, layer)
);

CREATE TABLE IF NOT EXISTS %s (
	name      TEXT PRIMARY KEY,
	layer     TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	sampled   INTEGER NOT NULL DEFAULT 0%s
);
`,
		rawEdgeTable(layer), columnDDL(typedColumns(schema.EdgeColumns)),
		aggEdgeTable(layer), columnDDL(aggColumns(schema.AggColumns)),
		nodeTable(layer), columnDDL(typedColumns(schema.NodeColumns)),
	)

	if _, err := s.exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating tables for layer %s: %w", layer, err)
	}

	s.mu.Lock()
	s.layers[layer] = schema
	s.mu.Unlock()
	return nil
}

func (s *Store) schemaFor(layer string) (store.LayerSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.layers[layer]
	if !ok {
		return store.LayerSchema{}, fmt.Errorf("layer %s: %w", layer, store.ErrNotFound)
	}
	return schema, nil
}

// typedColumn pairs a column name with its SQLite type affinity.
type typedColumn struct {
	name string
	typ  string
}

func typedColumns(cols map[string]store.ColumnType) []typedColumn {
	out := make([]typedColumn, 0, len(cols))
	for name, typ := range cols {
		sqlType := "TEXT"
		if typ == store.ColumnInteger {
			sqlType = "INTEGER"
		}
		out = append(out, typedColumn{name: name, typ: sqlType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func aggColumns(cols map[string]store.Aggregation) []typedColumn {
	out := make([]typedColumn, 0, len(cols))
	for name, agg := range cols {
		sqlType := "INTEGER"
		if agg == store.AggAvg {
			sqlType = "REAL"
		}
		out = append(out, typedColumn{name: name, typ: sqlType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func columnDDL(cols []typedColumn) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(",\n\t")
		b.WriteString(c.name)
		b.WriteString(" ")
		b.WriteString(c.typ)
	}
	return b.String()
}

func columnNames(cols []typedColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// ---------- raw edges ----------

func (s *Store) AppendRawEdges(ctx context.Context, layer string, rows []store.RawEdge) error {
	if len(rows) == 0 {
		return nil
	}
	schema, err := s.schemaFor(layer)
	if err != nil {
		return err
	}
	extras := columnNames(typedColumns(schema.EdgeColumns))

	cols := append([]string{"source", "target", "layer", "iteration"}, extras...)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		rawEdgeTable(layer), strings.Join(cols, ", "), placeholders(len(cols)))

	return s.Tx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			args := []any{row.Source, row.Target, row.Layer, row.Iteration}
			for _, name := range extras {
				args = append(args, row.Attrs[name])
			}
			if _, err := s.exec(ctx, q, args...); err != nil {
				return fmt.Errorf("appending raw edge %s->%s on %s: %w", row.Source, row.Target, layer, err)
			}
		}
		return nil
	})
}

func (s *Store) RawEdges(ctx context.Context, layer string) ([]store.RawEdge, error) {
	schema, err := s.schemaFor(layer)
	if err != nil {
		return nil, err
	}
	extras := columnNames(typedColumns(schema.EdgeColumns))

	cols := append([]string{"id", "source", "target", "layer", "iteration"}, extras...)
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id ASC",
		strings.Join(cols, ", "), rawEdgeTable(layer))

	rows, err := s.q(ctx).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading raw edges for %s: %w", layer, err)
	}
	defer rows.Close() //nolint:errcheck

	var edges []store.RawEdge
	for rows.Next() {
		var e store.RawEdge
		dest := []any{&e.ID, &e.Source, &e.Target, &e.Layer, &e.Iteration}
		extraVals := make([]any, len(extras))
		for i := range extraVals {
			extraVals[i] = new(any)
		}
		dest = append(dest, extraVals...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning raw edge row: %w", err)
		}
		e.Attrs = attrMap(extras, extraVals)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating raw edges: %w", err)
	}
	return edges, nil
}

// ---------- aggregated edges ----------

func (s *Store) UpsertAggregatedEdges(ctx context.Context, layer string, rows []store.AggregatedEdge) error {
	if len(rows) == 0 {
		return nil
	}
	schema, err := s.schemaFor(layer)
	if err != nil {
		return err
	}
	extras := columnNames(aggColumns(schema.AggColumns))

	cols := append([]string{"source", "target", "layer", "weight", "iteration"}, extras...)
	updates := make([]string, 0, len(cols)-3)
	for _, c := range cols[3:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT (source, target, layer) DO UPDATE SET %s`,
		aggEdgeTable(layer), strings.Join(cols, ", "), placeholders(len(cols)),
		strings.Join(updates, ", "))

	return s.Tx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			args := []any{row.Source, row.Target, row.Layer, row.Weight, row.Iteration}
			for _, name := range extras {
				args = append(args, row.Attrs[name])
			}
			if _, err := s.exec(ctx, q, args...); err != nil {
				return fmt.Errorf("upserting aggregated edge %s->%s on %s: %w", row.Source, row.Target, layer, err)
			}
		}
		return nil
	})
}

// ---------- nodes ----------

func (s *Store) UpsertNodes(ctx context.Context, layer string, rows []store.Node) error {
	if len(rows) == 0 {
		return nil
	}
	schema, err := s.schemaFor(layer)
	if err != nil {
		return err
	}
	extras := columnNames(typedColumns(schema.NodeColumns))

	cols := append([]string{"name", "layer", "iteration"}, extras...)
	updates := []string{"iteration = excluded.iteration"}
	for _, c := range extras {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT (name) DO UPDATE SET %s`,
		nodeTable(layer), strings.Join(cols, ", "), placeholders(len(cols)),
		strings.Join(updates, ", "))

	return s.Tx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			args := []any{row.Name, row.Layer, row.Iteration}
			for _, name := range extras {
				args = append(args, row.Attrs[name])
			}
			if _, err := s.exec(ctx, q, args...); err != nil {
				return fmt.Errorf("upserting node %s on %s: %w", row.Name, layer, err)
			}
		}
		return nil
	})
}

func (s *Store) MarkNodesSampled(ctx context.Context, layer string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, err := s.schemaFor(layer); err != nil {
		return err
	}

	q := fmt.Sprintf("UPDATE %s SET sampled = 1 WHERE name IN (%s)",
		nodeTable(layer), placeholders(len(names)))
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	if _, err := s.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("marking nodes sampled on %s: %w", layer, err)
	}
	return nil
}

func (s *Store) Nodes(ctx context.Context, layer string) ([]store.Node, error) {
	return s.nodes(ctx, layer, false)
}

func (s *Store) nodes(ctx context.Context, layer string, sampledOnly bool) ([]store.Node, error) {
	schema, err := s.schemaFor(layer)
	if err != nil {
		return nil, err
	}
	extras := columnNames(typedColumns(schema.NodeColumns))

	cols := append([]string{"name", "layer", "iteration", "sampled"}, extras...)
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), nodeTable(layer))
	if sampledOnly {
		q += " WHERE sampled = 1"
	}
	q += " ORDER BY name ASC"

	rows, err := s.q(ctx).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading nodes for %s: %w", layer, err)
	}
	defer rows.Close() //nolint:errcheck

	var nodes []store.Node
	for rows.Next() {
		var n store.Node
		dest := []any{&n.Name, &n.Layer, &n.Iteration, &n.Sampled}
		extraVals := make([]any, len(extras))
		for i := range extraVals {
			extraVals[i] = new(any)
		}
		dest = append(dest, extraVals...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		n.Attrs = attrMap(extras, extraVals)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

// ---------- layer frame ----------

func (s *Store) ReadLayerFrame(ctx context.Context, layer string) (store.LayerFrame, error) {
	schema, err := s.schemaFor(layer)
	if err != nil {
		return store.LayerFrame{}, err
	}
	extras := columnNames(aggColumns(schema.AggColumns))

	cols := append([]string{"source", "target", "layer", "weight", "iteration"}, extras...)
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY source, target",
		strings.Join(cols, ", "), aggEdgeTable(layer))

	rows, err := s.q(ctx).QueryContext(ctx, q)
	if err != nil {
		return store.LayerFrame{}, fmt.Errorf("reading aggregated edges for %s: %w", layer, err)
	}
	defer rows.Close() //nolint:errcheck

	var frame store.LayerFrame
	for rows.Next() {
		var e store.AggregatedEdge
		dest := []any{&e.Source, &e.Target, &e.Layer, &e.Weight, &e.Iteration}
		extraVals := make([]any, len(extras))
		for i := range extraVals {
			extraVals[i] = new(any)
		}
		dest = append(dest, extraVals...)
		if err := rows.Scan(dest...); err != nil {
			return store.LayerFrame{}, fmt.Errorf("scanning aggregated edge row: %w", err)
		}
		e.Attrs = attrMap(extras, extraVals)
		frame.Edges = append(frame.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return store.LayerFrame{}, fmt.Errorf("iterating aggregated edges: %w", err)
	}

	frame.Nodes, err = s.nodes(ctx, layer, true)
	if err != nil {
		return store.LayerFrame{}, err
	}
	return frame, nil
}

// ---------- helpers ----------

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func attrMap(names []string, vals []any) map[string]any {
	if len(names) == 0 {
		return nil
	}
	attrs := make(map[string]any, len(names))
	for i, name := range names {
		attrs[name] = *(vals[i].(*any))
	}
	return attrs
}
