package store

import (
	"context"
	"fmt"

	"github.com/fhchina/cci/internal/extract"
	"github.com/fhchina/cci/internal/ir"
)

// SnapshotUnit extracts every symbol of a unit through the provider and
// records the results. Absences are recorded too, so a later warm start
// can distinguish "extracted, nothing there" from "never looked".
//
// Snapshotting is idempotent: extraction on an unchanged unit is
// deterministic and writes use first-row-wins conflict handling.
func (s *Store) SnapshotUnit(ctx context.Context, unit *ir.CompiledUnit, provider extract.Provider) error {
	if err := s.RecordUnit(ctx, unit); err != nil {
		return fmt.Errorf("snapshot unit: %w", err)
	}

	for _, td := range unit.Types {
		tc, err := provider.GetTypeContract(td.Ref())
		if err != nil {
			return fmt.Errorf("snapshot unit: type %s: %w", td.Name, err)
		}
		if err := s.WriteTypeContract(ctx, td.Ref().KeyOf(), unit.Identity, tc); err != nil {
			return fmt.Errorf("snapshot unit: %w", err)
		}

		for _, rd := range td.Routines {
			ref := rd.Ref()
			rc, err := provider.GetRoutineContract(ref)
			if err != nil {
				return fmt.Errorf("snapshot unit: routine %s: %w", ref, err)
			}
			if err := s.WriteRoutineContract(ctx, ref.KeyOf(), unit.Identity, rc); err != nil {
				return fmt.Errorf("snapshot unit: %w", err)
			}
		}
	}

	return nil
}

// Divergence kinds reported by VerifyUnit.
const (
	// DivergenceMissing: fresh extraction found a contract the catalog
	// has no row for.
	DivergenceMissing = "missing"
	// DivergenceChanged: the stored payload differs from fresh extraction.
	DivergenceChanged = "changed"
	// DivergenceStale: the catalog holds a contract fresh extraction no
	// longer produces.
	DivergenceStale = "stale"
)

// Divergence is one disagreement between the catalog and a fresh
// extraction pass.
type Divergence struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

// VerifyUnit re-extracts a unit and compares the results against the
// catalog. An empty report means the catalog faithfully reflects what
// extraction produces today; divergences indicate the unit changed after
// it was snapshotted.
//
// Symbols the catalog has never seen are not divergences; verification
// checks recorded rows, it does not demand completeness.
func (s *Store) VerifyUnit(ctx context.Context, unit *ir.CompiledUnit, provider extract.Provider) ([]Divergence, error) {
	var divergences []Divergence

	for _, td := range unit.Types {
		tc, err := provider.GetTypeContract(td.Ref())
		if err != nil {
			return nil, fmt.Errorf("verify unit: type %s: %w", td.Name, err)
		}
		d, err := s.verifyTypeRow(ctx, td.Ref().KeyOf(), tc)
		if err != nil {
			return nil, err
		}
		divergences = append(divergences, d...)

		for _, rd := range td.Routines {
			ref := rd.Ref()
			rc, err := provider.GetRoutineContract(ref)
			if err != nil {
				return nil, fmt.Errorf("verify unit: routine %s: %w", ref, err)
			}
			d, err := s.verifyRoutineRow(ctx, ref.KeyOf(), rc)
			if err != nil {
				return nil, err
			}
			divergences = append(divergences, d...)
		}
	}

	return divergences, nil
}

func (s *Store) verifyRoutineRow(ctx context.Context, key ir.RoutineKey, fresh *ir.RoutineContract) ([]Divergence, error) {
	stored, seen, err := s.ReadRoutineContract(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("verify unit: %w", err)
	}
	return compareRow(string(key), seen, stored != nil, fresh != nil, func() (bool, error) {
		a, err := marshalRoutineContract(stored)
		if err != nil {
			return false, err
		}
		b, err := marshalRoutineContract(fresh)
		if err != nil {
			return false, err
		}
		return a == b, nil
	})
}

func (s *Store) verifyTypeRow(ctx context.Context, key ir.TypeKey, fresh *ir.TypeContract) ([]Divergence, error) {
	stored, seen, err := s.ReadTypeContract(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("verify unit: %w", err)
	}
	return compareRow(string(key), seen, stored != nil, fresh != nil, func() (bool, error) {
		a, err := marshalTypeContract(stored)
		if err != nil {
			return false, err
		}
		b, err := marshalTypeContract(fresh)
		if err != nil {
			return false, err
		}
		return a == b, nil
	})
}

// compareRow classifies one symbol. equal is only consulted when both
// sides hold a contract.
func compareRow(key string, seen, storedHas, freshHas bool, equal func() (bool, error)) ([]Divergence, error) {
	switch {
	case !seen:
		if freshHas {
			return []Divergence{{Key: key, Kind: DivergenceMissing}}, nil
		}
		return nil, nil
	case storedHas && !freshHas:
		return []Divergence{{Key: key, Kind: DivergenceStale}}, nil
	case !storedHas && freshHas:
		return []Divergence{{Key: key, Kind: DivergenceChanged}}, nil
	case storedHas && freshHas:
		same, err := equal()
		if err != nil {
			return nil, fmt.Errorf("verify unit: %w", err)
		}
		if !same {
			return []Divergence{{Key: key, Kind: DivergenceChanged}}, nil
		}
	}
	return nil, nil
}
