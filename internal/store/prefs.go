package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const kindBool = "bool"

// Lookup returns the raw value stored under key, preserving its storage
// class: int64, float64, string, []byte, or bool for values written as bool.
//
// Implements prefs.Source.
func (s *Store) Lookup(ctx context.Context, key string) (any, bool, error) {
	var (
		value any
		kind  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, kind FROM preferences WHERE key = ?`, key).Scan(&value, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return restoreKind(value, kind), true, nil
}

// Set stores value under key, replacing any previous value, stamped with the
// store's clock.
//
// Implements prefs.Writer.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return s.SetAt(ctx, key, value, s.clock.Now())
}

// SetAt is Set with an explicit write instant.
func (s *Store) SetAt(ctx context.Context, key string, value any, at time.Time) error {
	kind := ""
	if b, ok := value.(bool); ok {
		kind = kindBool
		if b {
			value = int64(1)
		} else {
			value = int64(0)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, kind, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			kind = excluded.kind,
			updated_at = excluded.updated_at
	`, key, value, kind, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// All returns every stored preference.
//
// Implements prefs.Lister.
func (s *Store) All(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, kind FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var (
			key   string
			value any
			kind  string
		)
		if err := rows.Scan(&key, &value, &kind); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[key] = restoreKind(value, kind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return out, nil
}

func restoreKind(value any, kind string) any {
	if kind != kindBool {
		return value
	}
	if n, ok := value.(int64); ok {
		return n != 0
	}
	return value
}
