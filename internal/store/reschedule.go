package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RescheduleState is the persisted reschedule flag.
//
// NeedsReschedule is set when a pass is requested and cleared when one
// completes, so a pass that crashed or was killed stays visible and is
// retried by the next trigger.
type RescheduleState struct {
	NeedsReschedule bool      `json:"needs_reschedule"`
	RequestedAt     time.Time `json:"requested_at"`
	LastCompletedAt time.Time `json:"last_completed_at"`
}

// PassRecord is one entry of the reschedule audit log.
type PassRecord struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Prayer     string    `json:"prayer,omitempty"`
	TriggerAt  time.Time `json:"trigger_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// LoadRescheduleState returns the persisted state, or the zero state if no
// pass was ever requested.
func (s *Store) LoadRescheduleState(ctx context.Context) (RescheduleState, error) {
	var (
		needs     int
		requested sql.NullInt64
		completed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT needs_reschedule, requested_at, last_completed_at
		FROM reschedule_state WHERE id = 1
	`).Scan(&needs, &requested, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return RescheduleState{}, nil
	}
	if err != nil {
		return RescheduleState{}, fmt.Errorf("read reschedule state: %w", err)
	}
	return RescheduleState{
		NeedsReschedule: needs != 0,
		RequestedAt:     fromMillis(requested),
		LastCompletedAt: fromMillis(completed),
	}, nil
}

// MarkRescheduleRequested sets the flag and the request time.
func (s *Store) MarkRescheduleRequested(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reschedule_state (id, needs_reschedule, requested_at)
		VALUES (1, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			needs_reschedule = 1,
			requested_at = excluded.requested_at
	`, toMillis(at))
	if err != nil {
		return fmt.Errorf("mark reschedule requested: %w", err)
	}
	return nil
}

// MarkRescheduleCompleted clears the flag and records the completion time.
func (s *Store) MarkRescheduleCompleted(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reschedule_state (id, needs_reschedule, last_completed_at)
		VALUES (1, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			needs_reschedule = 0,
			last_completed_at = excluded.last_completed_at
	`, toMillis(at))
	if err != nil {
		return fmt.Errorf("mark reschedule completed: %w", err)
	}
	return nil
}

// RecordPass appends a pass to the audit log.
// Idempotent: recording the same ID twice keeps the first record.
func (s *Store) RecordPass(ctx context.Context, rec PassRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reschedule_passes
			(id, trigger, outcome, prayer, trigger_at, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Trigger, rec.Outcome, rec.Prayer, toMillis(rec.TriggerAt),
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), rec.Error)
	if err != nil {
		return fmt.Errorf("write pass %s: %w", rec.ID, err)
	}
	return nil
}

// RecentPasses returns up to limit passes, newest first.
func (s *Store) RecentPasses(ctx context.Context, limit int) ([]PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger, outcome, prayer, trigger_at, started_at, finished_at, error
		FROM reschedule_passes
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var out []PassRecord
	for rows.Next() {
		var (
			rec       PassRecord
			triggerAt sql.NullInt64
			started   int64
			finished  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Trigger, &rec.Outcome, &rec.Prayer, &triggerAt, &started, &finished, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		rec.TriggerAt = fromMillis(triggerAt)
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return out, nil
}
