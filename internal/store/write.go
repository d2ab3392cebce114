package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fhchina/cci/internal/ir"
)

// RecordUnit inserts a unit's identity into the catalog.
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording a known unit
// is silently ignored.
func (s *Store) RecordUnit(ctx context.Context, unit *ir.CompiledUnit) error {
	guid := ""
	if unit.Identity.GUID != uuid.Nil {
		guid = unit.Identity.GUID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (name, version, guid, location)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name, version) DO NOTHING
	`,
		unit.Identity.Name,
		unit.Identity.Version,
		guid,
		unit.Location,
	)
	if err != nil {
		return fmt.Errorf("record unit: %w", err)
	}

	return nil
}

// WriteRoutineContract inserts an extraction result for a routine key.
// A nil contract records absence: extraction ran and found nothing.
//
// Uses ON CONFLICT(routine_key) DO NOTHING for idempotency - extraction on
// an unchanged unit is deterministic, so the first row for a key wins and
// repeated runs are no-ops.
func (s *Store) WriteRoutineContract(ctx context.Context, key ir.RoutineKey, unit ir.UnitIdentity, contract *ir.RoutineContract) error {
	if contract == nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO routine_contracts (routine_key, unit_name, unit_version, absent)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(routine_key) DO NOTHING
		`, string(key), unit.Name, unit.Version)
		if err != nil {
			return fmt.Errorf("write routine contract: %w", err)
		}
		return nil
	}

	payload, err := marshalRoutineContract(contract)
	if err != nil {
		return fmt.Errorf("write routine contract: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routine_contracts (routine_key, unit_name, unit_version, absent, contract)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(routine_key) DO NOTHING
	`, string(key), unit.Name, unit.Version, payload)
	if err != nil {
		return fmt.Errorf("write routine contract: %w", err)
	}

	return nil
}

// WriteTypeContract inserts an extraction result for a type key.
// A nil contract records absence, mirroring WriteRoutineContract.
func (s *Store) WriteTypeContract(ctx context.Context, key ir.TypeKey, unit ir.UnitIdentity, contract *ir.TypeContract) error {
	if contract == nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO type_contracts (type_key, unit_name, unit_version, absent)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(type_key) DO NOTHING
		`, string(key), unit.Name, unit.Version)
		if err != nil {
			return fmt.Errorf("write type contract: %w", err)
		}
		return nil
	}

	payload, err := marshalTypeContract(contract)
	if err != nil {
		return fmt.Errorf("write type contract: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO type_contracts (type_key, unit_name, unit_version, absent, contract)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(type_key) DO NOTHING
	`, string(key), unit.Name, unit.Version, payload)
	if err != nil {
		return fmt.Errorf("write type contract: %w", err)
	}

	return nil
}
