// Package store executes compiled criteria statements against SQLite and
// keeps a log of every statement it ran.
//
// # Query Log
//
// Each executed statement is recorded in query_log with:
//   - id: UUIDv7, time-sortable, for correlating with logs
//   - seq: logical clock, strictly increasing, used for ordering
//   - args: canonical JSON (see internal/ir) so equal arguments are
//     byte-identical
//   - fingerprint: ir.StatementFingerprint(sql, args), grouping repeated
//     executions of the same statement
//
// Reads of the log always use ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Only one connection is opened; SQLite allows a single writer.
package store
