// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package store

import (
	"strings"
	"sync"

	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Factory creates a Store for a backend-specific locator. An empty locator
// means in-memory storage.
type Factory func(locator string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Open resolves dbURL to a backend and creates the store. An empty dbURL
// opens the default backend in memory. URLs of the form
// "backend://locator" select a backend explicitly; a bare path selects the
// default backend ("sqlite").
func Open(dbURL string) (Store, error) {
	backend, locator := splitURL(dbURL)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, spidererr.Errorf(spidererr.CodeStoreBackendUnknown,
			"unsupported storage backend: %q", backend)
	}

	return factory(locator)
}

func splitURL(dbURL string) (backend, locator string) {
	if dbURL == "" {
		return "sqlite", ""
	}
	if idx := strings.Index(dbURL, "://"); idx != -1 {
		// sqlalchemy-style sqlite:///file.db keeps a leading slash that is
		// part of the scheme separator, not the path.
		return dbURL[:idx], strings.TrimPrefix(dbURL[idx+3:], "/")
	}
	return "sqlite", dbURL
}
