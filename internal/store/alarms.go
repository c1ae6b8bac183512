package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/schedule"
)

// AlarmRecord is a mirrored host registration.
type AlarmRecord struct {
	schedule.Alarm
	RegisteredAt time.Time `json:"registered_at"`
}

// SaveAlarm records alarm under its slot, replacing the previous row.
func (s *Store) SaveAlarm(ctx context.Context, alarm schedule.Alarm, registeredAt time.Time) error {
	isha := 0
	if alarm.IsIsha {
		isha = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alarms (slot, prayer, sound, trigger_at, is_isha, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			prayer = excluded.prayer,
			sound = excluded.sound,
			trigger_at = excluded.trigger_at,
			is_isha = excluded.is_isha,
			registered_at = excluded.registered_at
	`, int(alarm.Slot), alarm.Prayer.String(), alarm.Sound, alarm.At.UnixMilli(), isha, registeredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("write alarm slot %d: %w", alarm.Slot, err)
	}
	return nil
}

// DeleteAlarm removes the row for slot, if any.
func (s *Store) DeleteAlarm(ctx context.Context, slot schedule.Slot) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE slot = ?`, int(slot)); err != nil {
		return fmt.Errorf("delete alarm slot %d: %w", slot, err)
	}
	return nil
}

// PendingAlarms returns every mirrored registration ordered by trigger time.
// Instants are returned in loc.
func (s *Store) PendingAlarms(ctx context.Context, loc *time.Location) ([]AlarmRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, prayer, sound, trigger_at, is_isha, registered_at
		FROM alarms ORDER BY trigger_at, slot
	`)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()

	var out []AlarmRecord
	for rows.Next() {
		var (
			slot      int
			name      string
			rec       AlarmRecord
			at, regAt int64
			isha      int
		)
		if err := rows.Scan(&slot, &name, &rec.Sound, &at, &isha, &regAt); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		p, err := prayer.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("alarm slot %d: %w", slot, err)
		}
		rec.Slot = schedule.Slot(slot)
		rec.Prayer = p
		rec.At = time.UnixMilli(at).In(loc)
		rec.IsIsha = isha != 0
		rec.RegisteredAt = time.UnixMilli(regAt).In(loc)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}
	return out, nil
}
