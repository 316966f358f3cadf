// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package connector

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sync"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// The csv connector rips networks out of local edge/node lists. It exists
// for testing pipelines and for offline crawls over exported data.

func init() {
	plugin.RegisterConnector(plugin.ConnectorPlugin{
		Name: "csv",
		Call: csvConnector,
		DefaultConfig: map[string]any{
			"edge_list_location": "",
			"node_list_location": "",
			"mode":               "in",
			"cache":              true,
		},
	})
}

var (
	csvCacheMu sync.Mutex
	csvCache   = map[string]plugin.Frame{}
)

func csvConnector(_ context.Context, nodeIDs []string, configuration map[string]any) (plugin.Frame, plugin.Frame, error) {
	cfg := plugin.Record(configuration)

	edgePath, ok := cfg.String("edge_list_location")
	if !ok || edgePath == "" {
		return nil, nil, spidererr.New(spidererr.CodeConfigValidateInvalidValue,
			"csv connector requires edge_list_location")
	}
	nodePath, _ := cfg.String("node_list_location")
	mode, _ := cfg.String("mode")
	if mode == "" {
		mode = "in"
	}
	if mode != "in" && mode != "out" && mode != "both" {
		return nil, nil, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"csv connector mode must be one of [in, out, both], got %q", mode)
	}

	cache := true
	if v, ok := configuration["cache"].(bool); ok {
		cache = v
	}

	allEdges, err := readCSV(edgePath, cache)
	if err != nil {
		return nil, nil, err
	}

	requested := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		requested[id] = true
	}

	var edges plugin.Frame
	for _, rec := range allEdges {
		source, _ := rec.String("source")
		target, _ := rec.String("target")
		match := false
		switch mode {
		case "in":
			match = requested[target]
		case "out":
			match = requested[source]
		case "both":
			match = requested[source] || requested[target]
		}
		if match {
			edges = append(edges, rec)
		}
	}

	var nodes plugin.Frame
	if nodePath != "" {
		allNodes, err := readCSV(nodePath, cache)
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range allNodes {
			if name, ok := rec.String("name"); ok && requested[name] {
				nodes = append(nodes, rec)
			}
		}
	}

	return edges, nodes, nil
}

// readCSV parses a headered CSV file into records, optionally keeping a
// per-process cache so repeated batches do not re-read the file.
func readCSV(path string, cache bool) (plugin.Frame, error) {
	if cache {
		csvCacheMu.Lock()
		frame, ok := csvCache[path]
		csvCacheMu.Unlock()
		if ok {
			return frame, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		// Disk hiccups on a local file are not retryable in any useful way;
		// surface them as plugin failures.
		return nil, spidererr.Wrapf(err, spidererr.CodePluginCallFailure, "opening csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, spidererr.Wrapf(err, spidererr.CodePluginCallFailure, "reading csv header %s", path)
	}

	var frame plugin.Frame
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, spidererr.Wrapf(err, spidererr.CodePluginCallFailure, "reading csv row %s", path)
		}
		rec := make(plugin.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		frame = append(frame, rec)
	}

	if cache {
		csvCacheMu.Lock()
		csvCache[path] = frame
		csvCacheMu.Unlock()
	}
	return frame, nil
}
