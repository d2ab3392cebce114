package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/query"
)

// ReadRoutineContract looks up the extraction result for a routine key.
//
// Three outcomes:
//   - (nil, false, nil): no row, the symbol was never extracted
//   - (nil, true, nil): absence row, extraction found no contract
//   - (c, true, nil): a stored contract
func (s *Store) ReadRoutineContract(ctx context.Context, key ir.RoutineKey) (*ir.RoutineContract, bool, error) {
	var (
		absent  bool
		payload sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT absent, contract
		FROM routine_contracts
		WHERE routine_key = ?
	`, string(key)).Scan(&absent, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read routine contract: %w", err)
	}

	if absent {
		return nil, true, nil
	}
	contract, err := unmarshalRoutineContract(payload.String)
	if err != nil {
		return nil, false, fmt.Errorf("read routine contract: %w", err)
	}
	return contract, true, nil
}

// ReadTypeContract looks up the extraction result for a type key.
// Outcomes mirror ReadRoutineContract.
func (s *Store) ReadTypeContract(ctx context.Context, key ir.TypeKey) (*ir.TypeContract, bool, error) {
	var (
		absent  bool
		payload sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT absent, contract
		FROM type_contracts
		WHERE type_key = ?
	`, string(key)).Scan(&absent, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read type contract: %w", err)
	}

	if absent {
		return nil, true, nil
	}
	contract, err := unmarshalTypeContract(payload.String)
	if err != nil {
		return nil, false, fmt.Errorf("read type contract: %w", err)
	}
	return contract, true, nil
}

// RoutineEntry is one catalog row for a routine symbol.
type RoutineEntry struct {
	Key      ir.RoutineKey       `json:"key"`
	Absent   bool                `json:"absent,omitempty"`
	Contract *ir.RoutineContract `json:"contract,omitempty"`
}

// TypeEntry is one catalog row for a type symbol.
type TypeEntry struct {
	Key      ir.TypeKey       `json:"key"`
	Absent   bool             `json:"absent,omitempty"`
	Contract *ir.TypeContract `json:"contract,omitempty"`
}

// ReadUnitRoutineContracts returns all routine rows recorded for a unit.
// Ordering is deterministic: seq ASC, key ASC COLLATE BINARY. Returns an
// empty slice (not nil) when the unit has no rows.
func (s *Store) ReadUnitRoutineContracts(ctx context.Context, unit ir.UnitIdentity) ([]RoutineEntry, error) {
	return s.QueryRoutineContracts(ctx, query.ForUnit(unit.Name, unit.Version))
}

// ReadUnitTypeContracts returns all type rows recorded for a unit, with
// the same ordering guarantee as ReadUnitRoutineContracts.
func (s *Store) ReadUnitTypeContracts(ctx context.Context, unit ir.UnitIdentity) ([]TypeEntry, error) {
	return s.QueryTypeContracts(ctx, query.ForUnit(unit.Name, unit.Version))
}

// ReadUnits returns the identities recorded in the catalog, ordered by
// name then version.
func (s *Store) ReadUnits(ctx context.Context) ([]ir.UnitIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version
		FROM units
		ORDER BY name COLLATE BINARY ASC, version COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []ir.UnitIdentity{}
	for rows.Next() {
		var u ir.UnitIdentity
		if err := rows.Scan(&u.Name, &u.Version); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}

	return units, nil
}
