// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

// Package router translates connector records into typed edges addressed
// to a layer.
package router

import (
	"log/slog"
	"regexp"

	"github.com/spiderexpress-dev/spiderexpress/internal/config"
	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Edge is one routed edge. Dispatched marks edges rerouted to another
// layer via dispatch_with; their targets are enqueued on that layer.
type Edge struct {
	Source     string
	Target     string
	Layer      string
	Dispatched bool
	Attrs      map[string]any
}

// target is a compiled target emitter.
type target struct {
	field    string
	pattern  *regexp.Regexp
	dispatch string
	extra    map[string]any
}

// Router emits edges from records according to one router specification.
// Patterns are compiled once at construction; parsing never fails, it only
// drops records.
type Router struct {
	layer   string
	source  string
	targets []target
	extras  map[string]extraSpec
}

// extraSpec resolves one extra column: either a field reference into the
// record or a literal constant.
type extraSpec struct {
	field   string
	literal any
	isField bool
}

// New compiles a router specification for a layer. A pattern that does not
// compile or lacks exactly one capture group is a configuration error.
func New(layer string, spec config.RouterSpec) (*Router, error) {
	r := &Router{
		layer:  layer,
		source: spec.Source,
		extras: make(map[string]extraSpec, len(spec.Extra)),
	}

	for _, t := range spec.Targets {
		ct := target{field: t.Field, dispatch: t.DispatchWith, extra: t.Extra}
		if t.Pattern != "" {
			re, err := regexp.Compile(t.Pattern)
			if err != nil {
				return nil, spidererr.Wrapf(err, spidererr.CodeRouterSpecInvalid,
					"layer %s: compiling target pattern %q", layer, t.Pattern)
			}
			if re.NumSubexp() != 1 {
				return nil, spidererr.Errorf(spidererr.CodeRouterSpecInvalid,
					"layer %s: target pattern %q must have exactly one capture group, has %d",
					layer, t.Pattern, re.NumSubexp())
			}
			ct.pattern = re
		}
		r.targets = append(r.targets, ct)
	}

	for key, val := range spec.Extra {
		if field, ok := val.(string); ok {
			r.extras[key] = extraSpec{field: field, isField: true}
			continue
		}
		r.extras[key] = extraSpec{literal: val}
	}

	return r, nil
}

// Parse emits zero or more edges for one record. A missing or empty source
// drops the record silently; a target field or pattern that yields nothing
// produces no edges. Emission order follows target declaration order, and
// within one target the order of the scalars in its field.
func (r *Router) Parse(rec plugin.Record) []Edge {
	source, ok := rec.String(r.source)
	if !ok || source == "" {
		slog.Debug("router dropped record without source", "layer", r.layer, "field", r.source)
		return nil
	}

	// Router-level extras are constant across every edge emitted for this
	// record. A field reference the record lacks resolves to nil.
	attrs := make(map[string]any, len(r.extras))
	for key, spec := range r.extras {
		if spec.isField {
			v, _ := rec.Get(spec.field)
			attrs[key] = v
			continue
		}
		attrs[key] = spec.literal
	}

	var edges []Edge
	for _, t := range r.targets {
		layer := r.layer
		dispatched := false
		if t.dispatch != "" {
			layer = t.dispatch
			dispatched = true
		}

		// Target-level extra keys are literals layered over the router
		// extras.
		local := attrs
		if len(t.extra) > 0 {
			local = cloneAttrs(attrs)
			if local == nil {
				local = make(map[string]any, len(t.extra))
			}
			for k, v := range t.extra {
				local[k] = v
			}
		}

		for _, scalar := range rec.Strings(t.field) {
			if t.pattern == nil {
				if scalar == "" {
					continue
				}
				edges = append(edges, Edge{
					Source: source, Target: scalar, Layer: layer,
					Dispatched: dispatched, Attrs: cloneAttrs(local),
				})
				continue
			}
			for _, match := range t.pattern.FindAllStringSubmatch(scalar, -1) {
				edges = append(edges, Edge{
					Source: source, Target: match[1], Layer: layer,
					Dispatched: dispatched, Attrs: cloneAttrs(local),
				})
			}
		}
	}
	return edges
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
