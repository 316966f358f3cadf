// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package connector

import (
	"context"
	"time"
)

// SetSleep swaps the backoff sleeper so tests do not wait out real delays.
func (a *Adapter) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	a.sleep = fn
}
