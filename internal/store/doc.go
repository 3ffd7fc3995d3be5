// Package store provides SQLite-backed durable storage for users and checks.
//
// The store is the single holder of record. All score and status mutations
// arrive through the engine's transition functions and commit atomically:
//
//   - Pairwise exclusivity is enforced by a partial UNIQUE index on the
//     normalized pair key of pending rows, so the precondition check and the
//     insert are one atomic statement rather than a read followed by a write.
//   - Status transitions are conditional writes from status=pending. A lost
//     race affects zero rows and applies no score effects.
//   - User updates are version-guarded (optimistic concurrency).
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Timestamps are stored as integer Unix milliseconds; calendar dates as
// "2006-01-02" strings in the deployment timezone.
package store
