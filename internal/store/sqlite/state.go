// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

// LoadState returns the AppState singleton, creating it at iteration 0 on
// first use.
func (s *Store) LoadState(ctx context.Context) (*store.AppState, error) {
	const q = `SELECT iteration, max_iteration, phase, last_updated FROM app_state WHERE id = 1`

	var state store.AppState
	var lastUpdated string
	err := s.q(ctx).QueryRowContext(ctx, q).Scan(
		&state.Iteration, &state.MaxIteration, &state.Phase, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		state = store.AppState{Phase: "idle", LastUpdated: time.Now().UTC()}
		if err := s.SaveState(ctx, &state); err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading app state: %w", err)
	}

	state.LastUpdated, err = ParseTime(lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parsing app state last_updated: %w", err)
	}
	return &state, nil
}

func (s *Store) SaveState(ctx context.Context, state *store.AppState) error {
	const q = `INSERT INTO app_state (id, iteration, max_iteration, phase, last_updated)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET iteration = excluded.iteration, max_iteration = excluded.max_iteration,
    phase = excluded.phase, last_updated = excluded.last_updated`

	state.LastUpdated = time.Now().UTC()
	if _, err := s.exec(ctx, q, state.Iteration, state.MaxIteration, state.Phase,
		formatTime(state.LastUpdated)); err != nil {
		return fmt.Errorf("saving app state: %w", err)
	}
	return nil
}

// Strategy state is opaque to the store: each row is a JSON document whose
// shape the strategy declared at registration.

func (s *Store) StrategyState(ctx context.Context, layer, strategy string) ([]store.StateRow, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT data FROM strategy_state WHERE layer = ? AND strategy = ? ORDER BY id ASC`,
		layer, strategy)
	if err != nil {
		return nil, fmt.Errorf("reading strategy state for %s/%s: %w", layer, strategy, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []store.StateRow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning strategy state row: %w", err)
		}
		var row store.StateRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("unmarshalling strategy state for %s/%s: %w", layer, strategy, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceStrategyState(ctx context.Context, layer, strategy string, rows []store.StateRow) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx,
			`DELETE FROM strategy_state WHERE layer = ? AND strategy = ?`, layer, strategy); err != nil {
			return fmt.Errorf("clearing strategy state for %s/%s: %w", layer, strategy, err)
		}
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshalling strategy state for %s/%s: %w", layer, strategy, err)
			}
			if _, err := s.exec(ctx,
				`INSERT INTO strategy_state (layer, strategy, data) VALUES (?, ?, ?)`,
				layer, strategy, string(data)); err != nil {
				return fmt.Errorf("writing strategy state for %s/%s: %w", layer, strategy, err)
			}
		}
		return nil
	})
}
