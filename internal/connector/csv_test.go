// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVConnector_Modes(t *testing.T) {
	dir := t.TempDir()
	edges := writeFile(t, dir, "edges.csv", "source,target,views\na,b,1\nb,c,2\nc,a,3\n")

	tests := []struct {
		mode string
		want int
	}{
		{"out", 1},  // edges whose source is requested
		{"in", 1},   // edges whose target is requested
		{"both", 2}, // either endpoint
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := map[string]any{
				"edge_list_location": edges,
				"mode":               tt.mode,
				"cache":              false,
			}
			got, _, err := csvConnector(context.Background(), []string{"a"}, cfg)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCSVConnector_NodeList(t *testing.T) {
	dir := t.TempDir()
	edges := writeFile(t, dir, "edges.csv", "source,target\na,b\n")
	nodes := writeFile(t, dir, "nodes.csv", "name,followers\na,10\nb,20\nz,99\n")

	cfg := map[string]any{
		"edge_list_location": edges,
		"node_list_location": nodes,
		"mode":               "out",
		"cache":              false,
	}

	_, nodeFrame, err := csvConnector(context.Background(), []string{"a", "b"}, cfg)
	require.NoError(t, err)
	require.Len(t, nodeFrame, 2)
	name, _ := nodeFrame[0].String("name")
	assert.Equal(t, "a", name)
}

func TestCSVConnector_Cache(t *testing.T) {
	dir := t.TempDir()
	edges := writeFile(t, dir, "edges.csv", "source,target\na,b\n")

	cfg := map[string]any{"edge_list_location": edges, "mode": "out", "cache": true}
	first, _, err := csvConnector(context.Background(), []string{"a"}, cfg)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The file is only read once; a rewrite is invisible while cached.
	require.NoError(t, os.WriteFile(edges, []byte("source,target\na,x\na,y\n"), 0o644))
	second, _, err := csvConnector(context.Background(), []string{"a"}, cfg)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestCSVConnector_InvalidConfig(t *testing.T) {
	_, _, err := csvConnector(context.Background(), []string{"a"}, map[string]any{})
	require.Error(t, err)

	_, _, err = csvConnector(context.Background(), []string{"a"}, map[string]any{
		"edge_list_location": "x.csv",
		"mode":               "sideways",
	})
	require.Error(t, err)
}
