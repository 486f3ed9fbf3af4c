// Package store keeps libcheck run history in SQLite.
//
// Each suite run is one row in runs plus one row per test in results,
// written in a single transaction. Writes are idempotent on the run ID, so
// saving the same report twice leaves one copy.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: results rows die with their run
//
// Schema changes are applied through PRAGMA user_version migrations.
package store
