// Package store provides a SQLite-backed catalog of extracted contracts.
//
// The catalog persists extraction results across runs so that a warm
// start can skip decompilation for symbols already processed. Rows model
// the extractor's three states:
//
//   - no row: the symbol was never extracted
//   - absent row: extraction ran and found no contract
//   - contract row: extraction ran and found one, stored as JSON
//
// # Determinism
//
// Extraction on an unchanged unit is deterministic, so writes use
// INSERT ... ON CONFLICT DO NOTHING: the first row for a key wins and
// repeated runs are no-ops. List queries order by seq ASC, key ASC
// COLLATE BINARY so that catalog dumps are byte-stable.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Contract payloads use the tagged JSON encoding from internal/ir;
// symbol keys use the canonical renderings from internal/ir/key.go.
package store
