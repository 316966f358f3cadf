// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/config"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spider.pe.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
project_name: test-crawl
seeds:
  - alice
layers:
  base:
    connector:
      csv:
        edge_list_location: edges.csv
        mode: out
    routers:
      - source: source
        target:
          - field: target
    sampler:
      random:
        n: 5
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "test-crawl", cfg.ProjectName)
	assert.Equal(t, "", cfg.DBURL)
	assert.Equal(t, 10000, cfg.MaxIteration)
	assert.Equal(t, 150, cfg.BatchSize)
	assert.Equal(t, config.EmptySeedsContinue, cfg.EmptySeeds)
	assert.False(t, cfg.RandomWait)
}

func TestLoad_FlatSeedsApplyToEveryLayer(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	seeds := cfg.SeedMap()
	assert.Equal(t, map[string][]string{"base": {"alice"}}, seeds)
}

func TestLoad_SeedsByLayer(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
seeds:
  base: [alice, bob]
layers:
  base:
    connector:
      csv: {edge_list_location: e.csv}
    routers:
      - source: source
        target: [{field: target}]
    sampler:
      random: {}
`))
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"base": {"alice", "bob"}}, cfg.SeedMap())
}

func TestLoad_Bindings(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	layer := cfg.Layers["base"]
	connName, connCfg := layer.ConnectorBinding()
	assert.Equal(t, "csv", connName)
	assert.Equal(t, "edges.csv", connCfg["edge_list_location"])

	stratName, stratCfg := layer.SamplerBinding()
	assert.Equal(t, "random", stratName)
	assert.Equal(t, 5, stratCfg["n"])
}

func TestLoad_RouterSpecWithExtras(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
seeds: [a]
layers:
  base:
    connector:
      csv: {edge_list_location: e.csv}
    routers:
      - source: handle
        target:
          - field: text
            pattern: '@(\w+)'
            dispatch_with: base
        view_count: view_count
    sampler:
      random: {}
`))
	require.NoError(t, err)

	router := cfg.Layers["base"].Routers[0]
	assert.Equal(t, "handle", router.Source)
	require.Len(t, router.Targets, 1)
	assert.Equal(t, `@(\w+)`, router.Targets[0].Pattern)
	assert.Equal(t, "base", router.Targets[0].DispatchWith)
	assert.Equal(t, "view_count", router.Extra["view_count"])
}

func TestLoad_Schema(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
seeds: [a]
layers:
  base:
    connector:
      csv: {edge_list_location: e.csv}
    routers:
      - source: source
        target: [{field: target}]
    sampler:
      random: {}
    edge_raw_table:
      columns:
        views: Integer
    edge_agg_table:
      columns:
        views: sum
    node_table:
      columns:
        handle: Text
`))
	require.NoError(t, err)

	schema := cfg.Layers["base"].Schema()
	assert.Equal(t, store.ColumnInteger, schema.EdgeColumns["views"])
	assert.Equal(t, store.AggSum, schema.AggColumns["views"])
	assert.Equal(t, store.ColumnText, schema.NodeColumns["handle"])
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			"no seeds",
			`
layers:
  base:
    connector: {csv: {}}
    routers: [{source: s, target: [{field: t}]}]
    sampler: {random: {}}
`,
			"either seeds or seed_file",
		},
		{
			"no layers",
			`seeds: [a]`,
			"at least one layer",
		},
		{
			"bad empty_seeds",
			minimalConfig + "\nempty_seeds: explode\n",
			"empty_seeds",
		},
		{
			"zero batch size",
			minimalConfig + "\nbatch_size: 0\n",
			"batch_size",
		},
		{
			"db_schema with sqlite",
			minimalConfig + "\ndb_url: sqlite:///x.db\ndb_schema: public\n",
			"db_schema",
		},
		{
			"seeds for undeclared layer",
			`
seeds:
  ghost: [a]
layers:
  base:
    connector: {csv: {}}
    routers: [{source: s, target: [{field: t}]}]
    sampler: {random: {}}
`,
			"undeclared layer",
		},
		{
			"router without source",
			`
seeds: [a]
layers:
  base:
    connector: {csv: {}}
    routers: [{target: [{field: t}]}]
    sampler: {random: {}}
`,
			"source",
		},
		{
			"dispatch to undeclared layer",
			`
seeds: [a]
layers:
  base:
    connector: {csv: {}}
    routers: [{source: s, target: [{field: t, dispatch_with: ghost}]}]
    sampler: {random: {}}
`,
			"dispatch_with",
		},
		{
			"two samplers",
			`
seeds: [a]
layers:
  base:
    connector: {csv: {}}
    routers: [{source: s, target: [{field: t}]}]
    sampler: {random: {}, snowball: {}}
`,
			"exactly one strategy",
		},
		{
			"bad column type",
			minimalConfig + `
    edge_raw_table:
      columns: {views: Float}
`,
			"Text or Integer",
		},
		{
			"bad aggregation",
			minimalConfig + `
    edge_raw_table:
      columns: {views: Integer}
    edge_agg_table:
      columns: {views: median}
`,
			"sum, min, max, avg, count",
		},
		{
			"sum over text column",
			minimalConfig + `
    edge_raw_table:
      columns: {label: Text}
    edge_agg_table:
      columns: {label: sum}
`,
			"requires an Integer column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nalice\n\nbob\n  carol  \n"), 0o644))

	ids, err := config.ReadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
}

func TestReadSeedFile_Missing(t *testing.T) {
	_, err := config.ReadSeedFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
