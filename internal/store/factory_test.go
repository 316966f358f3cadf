// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
	_ "github.com/spiderexpress-dev/spiderexpress/internal/store/sqlite"
	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

func TestOpen_DefaultsToSqliteInMemory(t *testing.T) {
	s, err := store.Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_SqlalchemyStyleURL(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open("sqlite:///" + dir + "/spider.db")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_BarePath(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir + "/spider.db")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := store.Open("postgres://localhost/spider")
	require.Error(t, err)
	assert.True(t, spidererr.HasCode(err, spidererr.CodeStoreBackendUnknown))
}
