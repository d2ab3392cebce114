package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhchina/cci/internal/ir"
)

func stringType() ir.TypeRef { return ir.TypeRef{Unit: implIdentity, Name: "String"} }
func intType() ir.TypeRef    { return ir.TypeRef{Unit: implIdentity, Name: "Int32"} }

// parserUnit builds a unit with one concrete type exercising the lazy
// extraction paths: a contracted routine, an uncontracted one, bodiless
// pure and impure declarations, a synthesized accessor, and an invariant
// method.
func parserUnit() *ir.CompiledUnit {
	unit := &ir.CompiledUnit{Identity: implIdentity}
	parserRef := ir.TypeRef{Unit: implIdentity, Name: "Parser"}

	parseRef := ir.RoutineRef{
		DeclaringType: parserRef,
		Name:          "Parse",
		Params:        []ir.TypeRef{stringType()},
		Result:        stringType(),
	}
	parse := &ir.RoutineDef{
		Name:   "Parse",
		Params: []*ir.ParamDef{{Name: "s", Type: stringType()}},
		Result: stringType(),
		Body: &ir.Body{Stmts: []ir.Stmt{
			requiresStmt(notNull(paramOf(parseRef, "s"))),
			ensuresStmt(notNull(&ir.ResultExpr{Type: stringType()})),
			&ir.ReturnStmt{Value: paramOf(parseRef, "s")},
		}},
	}

	tryParse := &ir.RoutineDef{
		Name:   "TryParse",
		Params: []*ir.ParamDef{{Name: "s", Type: stringType()}},
		Result: intType(),
		Body: &ir.Body{Stmts: []ir.Stmt{
			&ir.ReturnStmt{Value: &ir.Literal{Kind: ir.LiteralInt, Value: "0"}},
		}},
	}

	hash := &ir.RoutineDef{
		Name:         "Hash",
		Result:       intType(),
		IsExternal:   true,
		IsPureMarked: true,
	}
	blank := &ir.RoutineDef{
		Name:       "Blank",
		IsExternal: true,
	}

	getCount := &ir.RoutineDef{
		Name:        "get_Count",
		Result:      intType(),
		IsAccessor:  true,
		AccessorFor: "Count",
		Body: &ir.Body{Stmts: []ir.Stmt{
			&ir.ReturnStmt{Value: &ir.FieldExpr{DeclaringType: parserRef, Field: "Count"}},
		}},
	}

	parser := &ir.TypeDef{
		Name:     "Parser",
		Routines: []*ir.RoutineDef{parse, tryParse, hash, blank, getCount},
		Fields: []*ir.FieldDef{
			{Name: "Count", Type: intType()},
		},
		Invariants: &ir.TypeContract{Invariants: []ir.Invariant{
			{Condition: &ir.BinaryExpr{
				Op:    ">=",
				Left:  &ir.FieldExpr{DeclaringType: parserRef, Field: "Count"},
				Right: &ir.Literal{Kind: ir.LiteralInt, Value: "0"},
			}},
		}},
	}

	unit.Types = []*ir.TypeDef{parser}
	unit.Attach()
	return unit
}

func parseRefIn(unit *ir.CompiledUnit) ir.RoutineRef {
	return ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "Parse",
		Params:        []ir.TypeRef{stringType()},
		Result:        stringType(),
	}
}

func TestLazyExtractor_SplitsOnce(t *testing.T) {
	unit := parserUnit()
	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	ref := parseRefIn(unit)

	first, err := e.GetRoutineContract(ref)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Len(t, first.Preconditions, 1)
	assert.Len(t, first.Postconditions, 1)

	second, err := e.GetRoutineContract(ref)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, dec.Calls)
}

func TestLazyExtractor_AbsenceCached(t *testing.T) {
	unit := parserUnit()
	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	ref := ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "TryParse",
		Params:        []ir.TypeRef{stringType()},
	}

	for i := 0; i < 2; i++ {
		contract, err := e.GetRoutineContract(ref)
		require.NoError(t, err)
		assert.Nil(t, contract)
	}
	assert.Equal(t, 1, dec.Calls)
}

func TestLazyExtractor_UnresolvedReference(t *testing.T) {
	unit := parserUnit()
	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	contract, err := e.GetRoutineContract(ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "NoSuchRoutine",
	})
	require.NoError(t, err)
	assert.Nil(t, contract)
	assert.Zero(t, dec.Calls)
}

func TestLazyExtractor_BodilessRoutines(t *testing.T) {
	unit := parserUnit()
	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	pure, err := e.GetRoutineContract(ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "Hash",
		Result:        intType(),
	})
	require.NoError(t, err)
	require.NotNil(t, pure)
	assert.True(t, pure.IsPure)
	assert.Empty(t, pure.Preconditions)

	none, err := e.GetRoutineContract(ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "Blank",
	})
	require.NoError(t, err)
	assert.Nil(t, none)

	// Bodiless declarations never reach the decompiler.
	assert.Zero(t, dec.Calls)
}

func TestLazyExtractor_DecompileErrorNotCached(t *testing.T) {
	unit := parserUnit()
	cause := errors.New("truncated body stream")
	dec := &countingDecompiler{Fail: cause}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	ref := parseRefIn(unit)

	for i := 0; i < 2; i++ {
		contract, err := e.GetRoutineContract(ref)
		assert.Nil(t, contract)
		require.Error(t, err)
		assert.True(t, IsDecompileError(err))
		assert.ErrorIs(t, err, cause)
	}
	// Failures are retried, not cached.
	assert.Equal(t, 2, dec.Calls)
}

func TestLazyExtractor_ResidualListener(t *testing.T) {
	unit := parserUnit()
	rec := &residualRecorder{}
	e, err := NewLazyExtractor(unit)
	require.NoError(t, err)
	e.Register(rec)

	_, err = e.GetRoutineContract(parseRefIn(unit))
	require.NoError(t, err)

	require.Len(t, rec.Defs, 1)
	assert.Equal(t, "Parse", rec.Defs[0].Name)
	// Residual body is contract-free: the return statement only.
	require.Len(t, rec.Bodies[0].Stmts, 1)
	_, isReturn := rec.Bodies[0].Stmts[0].(*ir.ReturnStmt)
	assert.True(t, isReturn)
}

func TestLazyExtractor_TypeContract(t *testing.T) {
	unit := parserUnit()
	e, err := NewLazyExtractor(unit)
	require.NoError(t, err)

	tc, err := e.GetTypeContract(unit.TypeRefTo("Parser"))
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Len(t, tc.Invariants, 1)

	again, err := e.GetTypeContract(unit.TypeRefTo("Parser"))
	require.NoError(t, err)
	assert.Same(t, tc, again)
}

func TestLazyExtractor_TypeContractFromInvariantMethod(t *testing.T) {
	unit := &ir.CompiledUnit{Identity: implIdentity}
	stackRef := ir.TypeRef{Unit: implIdentity, Name: "Stack"}
	inv := &ir.RoutineDef{
		Name: InvariantMethodName,
		Body: &ir.Body{Stmts: []ir.Stmt{
			invariantStmt(&ir.BinaryExpr{
				Op:    ">=",
				Left:  &ir.FieldExpr{DeclaringType: stackRef, Field: "top"},
				Right: &ir.Literal{Kind: ir.LiteralInt, Value: "0"},
			}),
		}},
	}
	unit.Types = []*ir.TypeDef{{
		Name:     "Stack",
		Routines: []*ir.RoutineDef{inv},
		Fields: []*ir.FieldDef{
			{Name: "top", Type: intType()},
			{Name: "ghostDepth", Type: intType(), ContractOnly: true},
		},
	}}
	unit.Attach()

	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	tc, err := e.GetTypeContract(unit.TypeRefTo("Stack"))
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Len(t, tc.Invariants, 1)
	require.Len(t, tc.ContractFields, 1)
	assert.Equal(t, "ghostDepth", tc.ContractFields[0].Name)

	_, err = e.GetTypeContract(unit.TypeRefTo("Stack"))
	require.NoError(t, err)
	assert.Equal(t, 1, dec.Calls)
}

func TestLazyExtractor_TypeContractAbsent(t *testing.T) {
	unit := &ir.CompiledUnit{Identity: implIdentity}
	unit.Types = []*ir.TypeDef{{Name: "Plain"}}
	unit.Attach()

	e, err := NewLazyExtractor(unit)
	require.NoError(t, err)

	tc, err := e.GetTypeContract(unit.TypeRefTo("Plain"))
	require.NoError(t, err)
	assert.Nil(t, tc)
	assert.Equal(t, 1, e.types.Len())
}

func TestLazyExtractor_AccessorMinedFromInvariants(t *testing.T) {
	unit := parserUnit()
	e, err := NewLazyExtractor(unit)
	require.NoError(t, err)

	got, err := e.GetRoutineContract(ir.RoutineRef{
		DeclaringType: unit.TypeRefTo("Parser"),
		Name:          "get_Count",
		Result:        intType(),
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Postconditions, 1)

	// The invariant's property read becomes the getter's result.
	cond := got.Postconditions[0].Condition.(*ir.BinaryExpr)
	_, isResult := cond.Left.(*ir.ResultExpr)
	assert.True(t, isResult)
}

func TestLazyExtractor_RespecializesPerRequest(t *testing.T) {
	unit := &ir.CompiledUnit{Identity: implIdentity}
	boxRef := ir.TypeRef{Unit: implIdentity, Name: "Box"}
	getRef := ir.RoutineRef{
		DeclaringType: boxRef,
		Name:          "Get",
		Result:        ir.TypeRef{Name: "T"},
	}
	get := &ir.RoutineDef{
		Name:   "Get",
		Result: ir.TypeRef{Name: "T"},
		Body: &ir.Body{Stmts: []ir.Stmt{
			ensuresStmt(notNull(&ir.ResultExpr{Type: ir.TypeRef{Name: "T"}})),
			&ir.ReturnStmt{Value: nullLit()},
		}},
	}
	unit.Types = []*ir.TypeDef{{
		Name:          "Box",
		GenericParams: []string{"T"},
		Routines:      []*ir.RoutineDef{get},
	}}
	unit.Attach()

	dec := &countingDecompiler{}
	e, err := NewLazyExtractor(unit, WithDecompiler(dec))
	require.NoError(t, err)

	intInst := getRef
	intInst.DeclaringType.GenericArgs = []ir.TypeRef{intType()}
	strInst := getRef
	strInst.DeclaringType.GenericArgs = []ir.TypeRef{stringType()}

	intContract, err := e.GetRoutineContract(intInst)
	require.NoError(t, err)
	require.NotNil(t, intContract)
	intCond := intContract.Postconditions[0].Condition.(*ir.BinaryExpr)
	assert.True(t, intCond.Left.(*ir.ResultExpr).Type.Equal(intType()))

	strContract, err := e.GetRoutineContract(strInst)
	require.NoError(t, err)
	require.NotNil(t, strContract)
	strCond := strContract.Postconditions[0].Condition.(*ir.BinaryExpr)
	assert.True(t, strCond.Left.(*ir.ResultExpr).Type.Equal(stringType()))

	// One extraction; only the base form is cached.
	assert.Equal(t, 1, dec.Calls)
	assert.Equal(t, 1, e.routines.Len())

	base, err := e.GetRoutineContract(getRef)
	require.NoError(t, err)
	baseCond := base.Postconditions[0].Condition.(*ir.BinaryExpr)
	assert.Equal(t, "T", baseCond.Left.(*ir.ResultExpr).Type.Name)
}
