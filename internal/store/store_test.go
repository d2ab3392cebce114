package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhchina/cci/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testIdentity() ir.UnitIdentity {
	return ir.UnitIdentity{Name: "Parser.Impl", Version: "1.0"}
}

func testRoutineRef(name string) ir.RoutineRef {
	id := testIdentity()
	return ir.RoutineRef{
		DeclaringType: ir.TypeRef{Unit: id, Name: "Parser"},
		Name:          name,
		Params:        []ir.TypeRef{{Unit: id, Name: "String"}},
	}
}

func testContract() *ir.RoutineContract {
	return &ir.RoutineContract{
		Preconditions: []ir.Precondition{
			{Condition: &ir.Literal{Kind: ir.LiteralBool, Value: "true"}},
		},
		IsPure: true,
	}
}

func TestOpenConfiguresPragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteRoutineContract(context.Background(), testRoutineRef("Parse").KeyOf(), testIdentity(), testContract()))
	require.NoError(t, s1.Close())

	// Reopening runs pragmas and migrations again and keeps the data.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	_, seen, err := s2.ReadRoutineContract(context.Background(), testRoutineRef("Parse").KeyOf())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRoutineContractThreeStates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Never extracted: no row.
	c, seen, err := s.ReadRoutineContract(ctx, testRoutineRef("Parse").KeyOf())
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Nil(t, c)

	// Extracted, nothing found: absence row.
	require.NoError(t, s.WriteRoutineContract(ctx, testRoutineRef("Noop").KeyOf(), testIdentity(), nil))
	c, seen, err = s.ReadRoutineContract(ctx, testRoutineRef("Noop").KeyOf())
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Nil(t, c)

	// Extracted with a contract.
	require.NoError(t, s.WriteRoutineContract(ctx, testRoutineRef("Parse").KeyOf(), testIdentity(), testContract()))
	c, seen, err = s.ReadRoutineContract(ctx, testRoutineRef("Parse").KeyOf())
	require.NoError(t, err)
	assert.True(t, seen)
	require.NotNil(t, c)
	require.Len(t, c.Preconditions, 1)
	assert.True(t, c.IsPure)

	lit, ok := c.Preconditions[0].Condition.(*ir.Literal)
	require.True(t, ok)
	assert.Equal(t, ir.LiteralBool, lit.Kind)
	assert.Equal(t, "true", lit.Value)
}

func TestWriteRoutineContractFirstRowWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRoutineRef("Parse").KeyOf()

	require.NoError(t, s.WriteRoutineContract(ctx, key, testIdentity(), testContract()))

	// A second write for the same key is silently ignored.
	other := &ir.RoutineContract{IsPure: false}
	require.NoError(t, s.WriteRoutineContract(ctx, key, testIdentity(), other))

	c, _, err := s.ReadRoutineContract(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.IsPure)
}

func TestTypeContractRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := testIdentity()
	key := ir.TypeRef{Unit: id, Name: "Parser"}.KeyOf()

	tc := &ir.TypeContract{
		Invariants: []ir.Invariant{
			{Condition: &ir.UnaryExpr{Op: "!", Operand: &ir.FieldExpr{
				DeclaringType: ir.TypeRef{Unit: id, Name: "Parser"},
				Field:         "closed",
			}}},
		},
	}
	require.NoError(t, s.WriteTypeContract(ctx, key, id, tc))

	got, seen, err := s.ReadTypeContract(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
	require.NotNil(t, got)
	require.Len(t, got.Invariants, 1)

	not, ok := got.Invariants[0].Condition.(*ir.UnaryExpr)
	require.True(t, ok)
	field, ok := not.Operand.(*ir.FieldExpr)
	require.True(t, ok)
	assert.Equal(t, "closed", field.Field)
}

func TestReadUnitRoutineContractsOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := testIdentity()

	require.NoError(t, s.WriteRoutineContract(ctx, testRoutineRef("Parse").KeyOf(), id, testContract()))
	require.NoError(t, s.WriteRoutineContract(ctx, testRoutineRef("Noop").KeyOf(), id, nil))
	require.NoError(t, s.WriteRoutineContract(ctx, testRoutineRef("Blank").KeyOf(), id, testContract()))

	// A row from another unit must not leak in.
	otherID := ir.UnitIdentity{Name: "Other", Version: "2.0"}
	otherRef := ir.RoutineRef{DeclaringType: ir.TypeRef{Unit: otherID, Name: "Thing"}, Name: "Do"}
	require.NoError(t, s.WriteRoutineContract(ctx, otherRef.KeyOf(), otherID, nil))

	entries, err := s.ReadUnitRoutineContracts(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Insertion order is preserved through seq.
	assert.Equal(t, testRoutineRef("Parse").KeyOf(), entries[0].Key)
	assert.Equal(t, testRoutineRef("Noop").KeyOf(), entries[1].Key)
	assert.Equal(t, testRoutineRef("Blank").KeyOf(), entries[2].Key)
	assert.False(t, entries[0].Absent)
	assert.True(t, entries[1].Absent)

	empty, err := s.ReadUnitRoutineContracts(ctx, ir.UnitIdentity{Name: "Nowhere"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRecordUnit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	unit := &ir.CompiledUnit{Identity: testIdentity(), Location: "fixtures/parser.unit"}
	require.NoError(t, s.RecordUnit(ctx, unit))
	require.NoError(t, s.RecordUnit(ctx, unit)) // idempotent

	units, err := s.ReadUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Parser.Impl", units[0].Name)
	assert.Equal(t, "1.0", units[0].Version)
}
