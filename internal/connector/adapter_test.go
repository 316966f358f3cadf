// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package connector_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/config"
	"github.com/spiderexpress-dev/spiderexpress/internal/connector"
	"github.com/spiderexpress-dev/spiderexpress/internal/plugin"
	"github.com/spiderexpress-dev/spiderexpress/internal/router"
	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

var registerOnce sync.Once

// fakeCalls records the batches a fake connector received.
type fakeCalls struct {
	mu      sync.Mutex
	batches [][]string
	fail    int // number of leading calls that fail transiently
}

func (f *fakeCalls) call(_ context.Context, ids []string, _ map[string]any) (plugin.Frame, plugin.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, ids)
	if len(f.batches) <= f.fail {
		return nil, nil, spidererr.New(spidererr.CodeConnectorCallTransient, "flaky upstream")
	}

	var edges, nodes plugin.Frame
	for _, id := range ids {
		edges = append(edges, plugin.Record{"from": id, "to": id + "-friend", "views": "12"})
		nodes = append(nodes, plugin.Record{"name": id, "followers": "7"})
	}
	// One row the adapter must drop: not in the requested batch.
	nodes = append(nodes, plugin.Record{"name": "stranger"})
	return edges, nodes, nil
}

var currentFake *fakeCalls

func newFakeAdapter(t *testing.T, batchSize int, fail int) (*connector.Adapter, *fakeCalls) {
	t.Helper()
	registerOnce.Do(func() {
		plugin.RegisterConnector(plugin.ConnectorPlugin{
			Name: "fake",
			Call: func(ctx context.Context, ids []string, cfg map[string]any) (plugin.Frame, plugin.Frame, error) {
				return currentFake.call(ctx, ids, cfg)
			},
		})
	})
	fake := &fakeCalls{fail: fail}
	currentFake = fake

	rt, err := router.New("base", config.RouterSpec{
		Source:  "from",
		Targets: []config.TargetSpec{{Field: "to"}},
		Extra:   map[string]any{"views": "views"},
	})
	require.NoError(t, err)

	schema := store.LayerSchema{
		EdgeColumns: map[string]store.ColumnType{"views": store.ColumnInteger},
		NodeColumns: map[string]store.ColumnType{"followers": store.ColumnInteger},
	}

	a, err := connector.New("base", "fake", nil, []*router.Router{rt}, schema, batchSize, false, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	a.SetSleep(func(context.Context, time.Duration) error { return nil })
	return a, fake
}

func TestAdapter_BatchesRequests(t *testing.T) {
	a, fake := newFakeAdapter(t, 2, 0)

	edges, nodes, err := a.Fetch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, fake.batches)
	assert.Len(t, edges, 5)
	assert.Len(t, nodes, 5)
}

func TestAdapter_RoutesAndCoerces(t *testing.T) {
	a, _ := newFakeAdapter(t, 10, 0)

	edges, nodes, err := a.Fetch(context.Background(), []string{"a"})
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.Equal(t, "a", edges[0].Source)
	assert.Equal(t, "a-friend", edges[0].Target)
	assert.Equal(t, "base", edges[0].Layer)
	assert.Equal(t, int64(12), edges[0].Attrs["views"])

	// The stranger row was dropped, the declared column coerced.
	require.Len(t, nodes, 1)
	assert.Equal(t, "a", nodes[0].Name)
	assert.Equal(t, int64(7), nodes[0].Attrs["followers"])
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	a, fake := newFakeAdapter(t, 10, 2)

	edges, _, err := a.Fetch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, fake.batches, 3)
	assert.Len(t, edges, 1)
}

func TestAdapter_RetryExhaustion(t *testing.T) {
	a, fake := newFakeAdapter(t, 10, 4)

	_, _, err := a.Fetch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, spidererr.IsTransient(err))
	assert.Len(t, fake.batches, 3)
}

func TestAdapter_CancelledBetweenBatches(t *testing.T) {
	a, _ := newFakeAdapter(t, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.Fetch(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, spidererr.IsCancelled(err))
}

func TestAdapter_UnknownConnector(t *testing.T) {
	_, err := connector.New("base", "does-not-exist", nil, nil, store.LayerSchema{}, 10, false, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.True(t, spidererr.HasCode(err, spidererr.CodePluginNotFound))
}

func TestAdapter_CoercionFailureYieldsNull(t *testing.T) {
	plugin.RegisterConnector(plugin.ConnectorPlugin{
		Name: "garbage",
		Call: func(context.Context, []string, map[string]any) (plugin.Frame, plugin.Frame, error) {
			return plugin.Frame{{"from": "a", "to": "b", "views": "not-a-number"}},
				plugin.Frame{{"name": "a", "followers": []any{"weird"}}}, nil
		},
	})

	rt, err := router.New("base", config.RouterSpec{
		Source:  "from",
		Targets: []config.TargetSpec{{Field: "to"}},
		Extra:   map[string]any{"views": "views"},
	})
	require.NoError(t, err)

	schema := store.LayerSchema{
		EdgeColumns: map[string]store.ColumnType{"views": store.ColumnInteger},
		NodeColumns: map[string]store.ColumnType{"followers": store.ColumnInteger},
	}
	a, err := connector.New("base", "garbage", nil, []*router.Router{rt}, schema, 10, false, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	edges, nodes, err := a.Fetch(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Nil(t, edges[0].Attrs["views"])
	require.Len(t, nodes, 1)
	assert.Nil(t, nodes[0].Attrs["followers"])
}
