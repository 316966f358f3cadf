// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

// The seed queue is a global FIFO keyed by (layer, node_id). A seed that is
// pending, processing, or done is never enqueued twice; a failed one gets
// rescheduled by a later enqueue.

func (s *Store) EnqueueSeeds(ctx context.Context, layer string, ids []string, iteration int) error {
	if len(ids) == 0 {
		return nil
	}

	const q = `INSERT INTO seeds (layer, node_id, iteration, status, created_at)
VALUES (?, ?, ?, 'pending', ?)
ON CONFLICT (layer, node_id) DO UPDATE
SET status = 'pending', iteration = excluded.iteration, claim_id = '', visited_at = NULL
WHERE seeds.status = 'failed'`

	now := formatTime(time.Now())
	return s.Tx(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, err := s.exec(ctx, q, layer, id, iteration, now); err != nil {
				return fmt.Errorf("enqueuing seed %s on %s: %w", id, layer, err)
			}
		}
		return nil
	})
}

func (s *Store) ClaimNextSeedBatch(ctx context.Context, layer string, n int) ([]store.Seed, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", store.ErrInvalidInput, n)
	}

	claimID := uuid.NewString()
	var claimed []store.Seed

	err := s.Tx(ctx, func(ctx context.Context) error {
		const mark = `UPDATE seeds SET status = 'processing', claim_id = ?
WHERE id IN (
	SELECT id FROM seeds WHERE layer = ? AND status = 'pending' ORDER BY id ASC LIMIT ?
)`
		if _, err := s.exec(ctx, mark, claimID, layer, n); err != nil {
			return fmt.Errorf("claiming seed batch on %s: %w", layer, err)
		}

		var err error
		claimed, err = s.seedsWhere(ctx, "claim_id = ?", claimID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) CompleteSeed(ctx context.Context, layer, id string, status store.SeedStatus) error {
	if status != store.SeedDone && status != store.SeedFailed {
		return fmt.Errorf("%w: cannot complete seed to status %q", store.ErrInvalidInput, status)
	}

	const q = `UPDATE seeds SET status = ?, claim_id = '', visited_at = ?
WHERE layer = ? AND node_id = ? AND status = 'processing'`

	res, err := s.exec(ctx, q, string(status), formatTime(time.Now()), layer, id)
	if err != nil {
		return fmt.Errorf("completing seed %s on %s: %w", id, layer, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows for seed %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("processing seed %s on %s: %w", id, layer, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ResetSeeds(ctx context.Context, layer string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, layer)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `UPDATE seeds SET status = 'pending', visited_at = NULL
WHERE layer = ? AND status = 'done' AND node_id IN (` + placeholders(len(ids)) + `)`

	if _, err := s.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("resetting seeds on %s: %w", layer, err)
	}
	return nil
}

func (s *Store) ReleaseClaimedSeeds(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `UPDATE seeds SET status = 'pending', claim_id = '' WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("releasing claimed seeds: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) PendingLayers(ctx context.Context) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT DISTINCT layer FROM seeds WHERE status = 'pending' ORDER BY layer ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing pending layers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var layers []string
	for rows.Next() {
		var layer string
		if err := rows.Scan(&layer); err != nil {
			return nil, fmt.Errorf("scanning pending layer: %w", err)
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

func (s *Store) DoneSeedIDs(ctx context.Context, layer string) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT node_id FROM seeds WHERE layer = ? AND status = 'done' ORDER BY id ASC`, layer)
	if err != nil {
		return nil, fmt.Errorf("listing done seeds for %s: %w", layer, err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning done seed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Seeds(ctx context.Context, layer string) ([]store.Seed, error) {
	return s.seedsWhere(ctx, "layer = ?", layer)
}

func (s *Store) seedsWhere(ctx context.Context, cond string, args ...any) ([]store.Seed, error) {
	q := `SELECT layer, node_id, iteration, status, claim_id, created_at, visited_at
FROM seeds WHERE ` + cond + ` ORDER BY id ASC`

	rows, err := s.q(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying seeds: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var seeds []store.Seed
	for rows.Next() {
		var seed store.Seed
		var status, createdAt string
		var visitedAt sql.NullString
		if err := rows.Scan(&seed.Layer, &seed.NodeID, &seed.Iteration, &status,
			&seed.ClaimID, &createdAt, &visitedAt); err != nil {
			return nil, fmt.Errorf("scanning seed row: %w", err)
		}
		seed.Status = store.SeedStatus(status)
		seed.CreatedAt, err = ParseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing seed %s created_at: %w", seed.NodeID, err)
		}
		if visitedAt.Valid {
			t, err := ParseTime(visitedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing seed %s visited_at: %w", seed.NodeID, err)
			}
			seed.VisitedAt = &t
		}
		seeds = append(seeds, seed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating seeds: %w", err)
	}
	return seeds, nil
}
