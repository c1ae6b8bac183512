// Package store provides SQLite-backed durable storage for the muezzin daemon.
//
// The store holds four kinds of state:
//   - Preferences: untyped key/value pairs that keep their SQLite storage
//     class, so the decoder in package prefs sees the same representations
//     the legacy front-end wrote (INTEGER bit patterns, REAL, TEXT)
//   - Reschedule state: a single row with the needs-reschedule flag
//   - Pass log: one row per reschedule pass, keyed by a UUIDv7
//   - Alarm registry: a mirror of host registrations, one row per slot
//
// # Database Configuration
//
//   - WAL mode: the CLI reads while the daemon writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: Enforce referential integrity
//
// # Schema Versioning
//
// The schema is embedded from schema.sql and applied on every Open.
// Incremental changes are applied by version, tracked in PRAGMA user_version.
//
// # Time
//
// Instants are stored as unix milliseconds. NULL columns mean "never" and
// decode to the zero time.Time.
package store
