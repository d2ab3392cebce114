package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/query"
)

// QueryRoutineContracts returns the routine rows matching a filter, in
// the compiled query's deterministic order. A nil filter matches every
// row.
func (s *Store) QueryRoutineContracts(ctx context.Context, f query.Filter) ([]RoutineEntry, error) {
	stmt, params, err := query.Compile(query.RoutineContracts, f)
	if err != nil {
		return nil, fmt.Errorf("query routine contracts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query routine contracts: %w", err)
	}
	defer rows.Close()

	entries := []RoutineEntry{}
	for rows.Next() {
		var (
			key     string
			absent  bool
			payload sql.NullString
		)
		if err := rows.Scan(&key, &absent, &payload); err != nil {
			return nil, fmt.Errorf("scan routine contract: %w", err)
		}
		entry := RoutineEntry{Key: ir.RoutineKey(key), Absent: absent}
		if !absent {
			if entry.Contract, err = unmarshalRoutineContract(payload.String); err != nil {
				return nil, fmt.Errorf("row %q: %w", key, err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routine contracts: %w", err)
	}

	return entries, nil
}

// QueryTypeContracts returns the type rows matching a filter, mirroring
// QueryRoutineContracts.
func (s *Store) QueryTypeContracts(ctx context.Context, f query.Filter) ([]TypeEntry, error) {
	stmt, params, err := query.Compile(query.TypeContracts, f)
	if err != nil {
		return nil, fmt.Errorf("query type contracts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query type contracts: %w", err)
	}
	defer rows.Close()

	entries := []TypeEntry{}
	for rows.Next() {
		var (
			key     string
			absent  bool
			payload sql.NullString
		)
		if err := rows.Scan(&key, &absent, &payload); err != nil {
			return nil, fmt.Errorf("scan type contract: %w", err)
		}
		entry := TypeEntry{Key: ir.TypeKey(key), Absent: absent}
		if !absent {
			if entry.Contract, err = unmarshalTypeContract(payload.String); err != nil {
				return nil, fmt.Errorf("row %q: %w", key, err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type contracts: %w", err)
	}

	return entries, nil
}
