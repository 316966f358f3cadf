// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package config

import (
	"errors"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Config is the top-level spiderexpress project configuration.
type Config struct {
	ProjectName  string                 `mapstructure:"project_name"`
	DBURL        string                 `mapstructure:"db_url"`
	DBSchema     string                 `mapstructure:"db_schema"`
	MaxIteration int                    `mapstructure:"max_iteration"`
	BatchSize    int                    `mapstructure:"batch_size"`
	RandomWait   bool                   `mapstructure:"random_wait"`
	EmptySeeds   string                 `mapstructure:"empty_seeds"`
	SeedFile     string                 `mapstructure:"seed_file"`
	Layers       map[string]LayerConfig `mapstructure:"layers"`

	// Seeds accepts either a layer→ids mapping or a flat id list in the
	// file; it is normalized after unmarshalling.
	seedsByLayer map[string][]string
	seedList     []string
}

// LayerConfig defines one named sub-graph: its connector binding, routers,
// sampler binding, and table schemas.
type LayerConfig struct {
	Connector map[string]map[string]any `mapstructure:"connector"`
	Routers   []RouterSpec              `mapstructure:"routers"`
	Sampler   map[string]map[string]any `mapstructure:"sampler"`
	Eager     bool                      `mapstructure:"eager"`

	EdgeRawTable TableConfig    `mapstructure:"edge_raw_table"`
	EdgeAggTable AggTableConfig `mapstructure:"edge_agg_table"`
	NodeTable    TableConfig    `mapstructure:"node_table"`
}

// TableConfig declares user columns as name→type (Text or Integer).
type TableConfig struct {
	Columns map[string]string `mapstructure:"columns"`
}

// AggTableConfig declares aggregated columns as name→fold, where the fold
// is applied to the raw-edge column of the same name.
type AggTableConfig struct {
	Columns map[string]string `mapstructure:"columns"`
}

// RouterSpec is one router declaration: a source field, ordered target
// emitters, and extra columns carried onto each edge.
type RouterSpec struct {
	Source  string         `mapstructure:"source"`
	Targets []TargetSpec   `mapstructure:"target"`
	Extra   map[string]any `mapstructure:",remain"`
}

// TargetSpec is one target emitter within a router. Extra keys are literal
// constants stamped onto every edge this emitter produces.
type TargetSpec struct {
	Field        string         `mapstructure:"field"`
	Pattern      string         `mapstructure:"pattern"`
	DispatchWith string         `mapstructure:"dispatch_with"`
	Extra        map[string]any `mapstructure:",remain"`
}

const (
	EmptySeedsStop     = "stop"
	EmptySeedsContinue = "continue"
)

// Load reads the project file at path with environment variable overrides
// (prefix SPIDEREXPRESS_) and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("project_name", "spider")
	v.SetDefault("db_url", "")
	v.SetDefault("max_iteration", 10000)
	v.SetDefault("batch_size", 150)
	v.SetDefault("random_wait", false)
	v.SetDefault("empty_seeds", EmptySeedsContinue)

	// Environment
	v.SetEnvPrefix("SPIDEREXPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, spidererr.Errorf(spidererr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	// v.Unmarshal relies on v.AllKeys(), which drops whole branches of the
	// config when a nested map is empty (e.g. `sampler: {random: {}}`).
	// v.Get() does not have that limitation, so decode from a settings map
	// built via v.Get() on each known top-level key instead.
	settings := map[string]any{
		"project_name":  v.Get("project_name"),
		"db_url":        v.Get("db_url"),
		"db_schema":     v.Get("db_schema"),
		"max_iteration": v.Get("max_iteration"),
		"batch_size":    v.Get("batch_size"),
		"random_wait":   v.Get("random_wait"),
		"empty_seeds":   v.Get("empty_seeds"),
		"seed_file":     v.Get("seed_file"),
		"layers":        v.Get("layers"),
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, spidererr.Errorf(spidererr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, spidererr.Errorf(spidererr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	cfg.normalizeSeeds(v.Get("seeds"))

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// normalizeSeeds accepts the two file shapes for `seeds`: a mapping
// layer→[ids] or a flat [ids] list applied to every declared layer.
func (c *Config) normalizeSeeds(raw any) {
	switch t := raw.(type) {
	case map[string]any:
		c.seedsByLayer = make(map[string][]string, len(t))
		for layer, ids := range t {
			c.seedsByLayer[layer] = toStrings(ids)
		}
	case []any:
		c.seedList = toStrings(t)
	case []string:
		c.seedList = t
	}
}

func toStrings(raw any) []string {
	switch t := raw.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	}
	return nil
}

// SeedMap returns the initial seeds per layer. A flat seed list is
// enqueued on every declared layer.
func (c *Config) SeedMap() map[string][]string {
	if c.seedsByLayer != nil {
		return c.seedsByLayer
	}
	if len(c.seedList) == 0 {
		return nil
	}
	out := make(map[string][]string, len(c.Layers))
	for layer := range c.Layers {
		out[layer] = c.seedList
	}
	return out
}

// HasSeeds reports whether any initial seed source is configured.
func (c *Config) HasSeeds() bool {
	return c.SeedFile != "" || c.seedsByLayer != nil || len(c.seedList) > 0
}

// ConnectorBinding returns the single connector name and configuration
// declared for a layer.
func (l LayerConfig) ConnectorBinding() (name string, conf map[string]any) {
	for n, c := range l.Connector {
		return n, c
	}
	return "", nil
}

// SamplerBinding returns the single strategy name and configuration
// declared for a layer.
func (l LayerConfig) SamplerBinding() (name string, conf map[string]any) {
	for n, c := range l.Sampler {
		return n, c
	}
	return "", nil
}

// Schema converts the layer's table declarations into the store schema.
func (l LayerConfig) Schema() store.LayerSchema {
	schema := store.LayerSchema{
		EdgeColumns: map[string]store.ColumnType{},
		AggColumns:  map[string]store.Aggregation{},
		NodeColumns: map[string]store.ColumnType{},
	}
	for name, typ := range l.EdgeRawTable.Columns {
		schema.EdgeColumns[name] = store.ColumnType(typ)
	}
	for name, agg := range l.EdgeAggTable.Columns {
		schema.AggColumns[name] = store.Aggregation(agg)
	}
	for name, typ := range l.NodeTable.Columns {
		schema.NodeColumns[name] = store.ColumnType(typ)
	}
	return schema
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.MaxIteration <= 0 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: max_iteration must be greater than 0, got %d", c.MaxIteration))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: batch_size must be greater than 0, got %d", c.BatchSize))
	}
	if c.EmptySeeds != EmptySeedsStop && c.EmptySeeds != EmptySeedsContinue {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: empty_seeds must be one of [stop, continue], got %q", c.EmptySeeds))
	}
	if strings.HasPrefix(c.DBURL, "sqlite") && c.DBSchema != "" {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: db_schema is not supported with a sqlite db_url"))
	}
	if len(c.Layers) == 0 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: at least one layer must be declared"))
	}
	if !c.HasSeeds() {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: either seeds or seed_file must be provided"))
	}
	for layer, ids := range c.seedsByLayer {
		if _, ok := c.Layers[layer]; !ok {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: seeds.%s references an undeclared layer", layer))
		}
		if len(ids) == 0 {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: seeds.%s must not be empty", layer))
		}
	}

	for name, layer := range c.Layers {
		errs = append(errs, layer.validate(name, c.Layers)...)
	}

	return errs
}

func (l LayerConfig) validate(name string, layers map[string]LayerConfig) []error {
	var errs []error

	if len(l.Connector) != 1 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: layers.%s.connector must declare exactly one connector, got %d", name, len(l.Connector)))
	}
	if len(l.Sampler) != 1 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: layers.%s.sampler must declare exactly one strategy, got %d", name, len(l.Sampler)))
	}
	if len(l.Routers) == 0 {
		errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
			"config: layers.%s.routers must declare at least one router", name))
	}

	for i, router := range l.Routers {
		if router.Source == "" {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: layers.%s.routers[%d].source must not be empty", name, i))
		}
		if len(router.Targets) == 0 {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: layers.%s.routers[%d].target must declare at least one emitter", name, i))
		}
		for j, target := range router.Targets {
			if target.Field == "" {
				errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
					"config: layers.%s.routers[%d].target[%d].field must not be empty", name, i, j))
			}
			if target.DispatchWith != "" {
				if _, ok := layers[target.DispatchWith]; !ok {
					errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
						"config: layers.%s.routers[%d].target[%d].dispatch_with references undeclared layer %q",
						name, i, j, target.DispatchWith))
				}
			}
		}
	}

	for col, typ := range l.EdgeRawTable.Columns {
		if !store.ValidColumnType(store.ColumnType(typ)) {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: layers.%s.edge_raw_table.columns.%s must be Text or Integer, got %q", name, col, typ))
		}
	}
	for col, typ := range l.NodeTable.Columns {
		if !store.ValidColumnType(store.ColumnType(typ)) {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: layers.%s.node_table.columns.%s must be Text or Integer, got %q", name, col, typ))
		}
	}
	for col, agg := range l.EdgeAggTable.Columns {
		if !store.ValidAggregation(store.Aggregation(agg)) {
			errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
				"config: layers.%s.edge_agg_table.columns.%s must be one of [sum, min, max, avg, count], got %q",
				name, col, agg))
			continue
		}
		// Numeric folds need a numeric raw column of the same name; count
		// works on anything.
		if store.Aggregation(agg) != store.AggCount {
			typ, declared := l.EdgeRawTable.Columns[col]
			if !declared {
				errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
					"config: layers.%s.edge_agg_table.columns.%s has no matching edge_raw_table column", name, col))
			} else if store.ColumnType(typ) != store.ColumnInteger {
				errs = append(errs, spidererr.Errorf(spidererr.CodeConfigValidateInvalidValue,
					"config: layers.%s.edge_agg_table.columns.%s: %s requires an Integer column, got %s",
					name, col, agg, typ))
			}
		}
	}

	return errs
}
