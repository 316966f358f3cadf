// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

func TestRegistry_Connectors(t *testing.T) {
	plugin.RegisterConnector(plugin.ConnectorPlugin{
		Name: "registry-test-conn",
		Call: func(context.Context, []string, map[string]any) (plugin.Frame, plugin.Frame, error) {
			return nil, nil, nil
		},
		DefaultConfig: map[string]any{"mode": "in"},
	})

	p, err := plugin.LookupConnector("registry-test-conn")
	require.NoError(t, err)
	assert.Equal(t, "registry-test-conn", p.Name)
	assert.Equal(t, "in", p.DefaultConfig["mode"])
	assert.Contains(t, plugin.Connectors(), "registry-test-conn")

	_, err = plugin.LookupConnector("nope")
	require.Error(t, err)
	assert.True(t, spidererr.HasCode(err, spidererr.CodePluginNotFound))
}

func TestRegistry_Strategies(t *testing.T) {
	plugin.RegisterStrategy(plugin.StrategyPlugin{
		Name: "registry-test-strat",
		Call: func(context.Context, plugin.StrategyInput) (plugin.StrategyResult, error) {
			return plugin.StrategyResult{}, nil
		},
	})

	p, err := plugin.LookupStrategy("registry-test-strat")
	require.NoError(t, err)
	assert.Equal(t, "registry-test-strat", p.Name)
	assert.Contains(t, plugin.Strategies(), "registry-test-strat")

	_, err = plugin.LookupStrategy("nope")
	require.Error(t, err)
	assert.True(t, spidererr.HasCode(err, spidererr.CodePluginNotFound))
}
