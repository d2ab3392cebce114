package rewrite

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhchina/cci/internal/ir"
)

var (
	implUnit = ir.UnitIdentity{Name: "Acme.Parsing", Version: "1.0", GUID: uuid.MustParse("11111111-1111-4111-8111-111111111111")}
	oobUnit  = ir.UnitIdentity{Name: "Acme.Parsing.Contracts", Version: "1.0", GUID: uuid.MustParse("22222222-2222-4222-8222-222222222222")}
	coreUnit = ir.UnitIdentity{Name: "Core", Version: "4.0"}
)

func routineIn(unit ir.UnitIdentity) ir.RoutineRef {
	return ir.RoutineRef{
		DeclaringType: ir.TypeRef{Unit: unit, Name: "Parser"},
		Name:          "TryParse",
		Params:        []ir.TypeRef{{Unit: coreUnit, Name: "String"}},
		Result:        ir.TypeRef{Unit: coreUnit, Name: "Boolean"},
	}
}

func notNull(of ir.Expression) ir.Expression {
	return &ir.BinaryExpr{Op: "!=", Left: of, Right: &ir.Literal{Kind: ir.LiteralNull, Value: "null"}}
}

// TestUnitRules_RoundTrip verifies mapping a symbol into a secondary unit
// and back yields the original symbol, and that foreign units are left
// untouched.
func TestUnitRules_RoundTrip(t *testing.T) {
	ref := routineIn(implUnit)

	mapped := MapRoutineRef(ref, implUnit, oobUnit)
	assert.True(t, mapped.DeclaringType.Unit.Equal(oobUnit))
	// Core is a third unit: untouched in both directions.
	assert.True(t, mapped.Params[0].Unit.Equal(coreUnit))

	back := MapRoutineRef(mapped, oobUnit, implUnit)
	assert.Equal(t, ref, back)
	assert.Equal(t, ref.KeyOf(), back.KeyOf())
}

// TestUnitRules_RewritesNestedGenericArgs verifies identity substitution
// reaches generic arguments.
func TestUnitRules_RewritesNestedGenericArgs(t *testing.T) {
	tr := ir.TypeRef{
		Unit: coreUnit,
		Name: "List",
		GenericArgs: []ir.TypeRef{
			{Unit: implUnit, Name: "Token"},
		},
	}

	mapped := MapTypeRef(tr, implUnit, oobUnit)
	assert.True(t, mapped.Unit.Equal(coreUnit))
	assert.True(t, mapped.GenericArgs[0].Unit.Equal(oobUnit))
}

// TestUnitRules_ContractParameterSymbols verifies a contract fetched in a
// secondary unit reads against the primary's parameter symbols after
// mapping back.
func TestUnitRules_ContractParameterSymbols(t *testing.T) {
	oobRef := routineIn(oobUnit)
	contract := &ir.RoutineContract{
		Preconditions: []ir.Precondition{{
			Condition: notNull(&ir.ParamExpr{Routine: oobRef, Name: "s"}),
		}},
	}

	mapped := RoutineContractOf(contract, UnitRules(oobUnit, implUnit))

	param := mapped.Preconditions[0].Condition.(*ir.BinaryExpr).Left.(*ir.ParamExpr)
	assert.True(t, param.Routine.DeclaringType.Unit.Equal(implUnit))
	// Source contract is untouched.
	srcParam := contract.Preconditions[0].Condition.(*ir.BinaryExpr).Left.(*ir.ParamExpr)
	assert.True(t, srcParam.Routine.DeclaringType.Unit.Equal(oobUnit))
}

// TestTypeParamRules_Substitution verifies instantiation substitution
// replaces parameter occurrences and leaves real types alone.
func TestTypeParamRules_Substitution(t *testing.T) {
	subst := InstantiationMap([]string{"T"}, []ir.TypeRef{{Unit: coreUnit, Name: "Int32"}})

	occurrence := GenericParamRef("T")
	got := TypeRefOf(occurrence, TypeParamRules(subst))
	assert.Equal(t, "Int32", got.Name)
	assert.True(t, got.Unit.Equal(coreUnit))

	real := ir.TypeRef{Unit: coreUnit, Name: "T"} // a real type that happens to be named T
	assert.Equal(t, real, TypeRefOf(real, TypeParamRules(subst)))

	unmapped := GenericParamRef("U")
	assert.Equal(t, unmapped, TypeRefOf(unmapped, TypeParamRules(subst)))
}

// TestPositionalParamMap verifies proxy-to-abstract generic re-mapping is
// position-wise.
func TestPositionalParamMap(t *testing.T) {
	subst := PositionalParamMap([]string{"TProxy", "UProxy"}, []string{"T", "U"})

	require.Len(t, subst, 2)
	assert.Equal(t, GenericParamRef("T"), subst["TProxy"])
	assert.Equal(t, GenericParamRef("U"), subst["UProxy"])

	// Arity mismatch: extra names ignored.
	short := PositionalParamMap([]string{"A", "B"}, []string{"T"})
	assert.Len(t, short, 1)
}

// TestRelocationRules verifies parameter and local references re-home
// from one routine context to another, by name and by position.
func TestRelocationRules(t *testing.T) {
	proxyRef := ir.RoutineRef{
		DeclaringType: ir.TypeRef{Unit: implUnit, Name: "ParserContracts"},
		Name:          "TryParse",
		Params:        []ir.TypeRef{{Unit: coreUnit, Name: "String"}},
	}
	abstractRef := routineIn(implUnit)

	cond := &ir.BinaryExpr{
		Op:    "&&",
		Left:  notNull(&ir.ParamExpr{Routine: proxyRef, Name: "input"}),
		Right: notNull(&ir.LocalExpr{Routine: proxyRef, Name: "tmp"}),
	}

	rules := RelocationRules(proxyRef, abstractRef, []string{"input"}, []string{"s"})
	got := ExprOf(cond, rules).(*ir.BinaryExpr)

	param := got.Left.(*ir.BinaryExpr).Left.(*ir.ParamExpr)
	assert.Equal(t, abstractRef, param.Routine)
	assert.Equal(t, "s", param.Name)

	local := got.Right.(*ir.BinaryExpr).Left.(*ir.LocalExpr)
	assert.Equal(t, abstractRef, local.Routine)
	assert.Equal(t, "tmp", local.Name)
}

// TestParamSubstitutionRules verifies formals substitution deep-copies
// replacements so repeated occurrences never alias.
func TestParamSubstitutionRules(t *testing.T) {
	secondary := routineIn(oobUnit)
	primaryParam := &ir.ParamExpr{Routine: routineIn(implUnit), Name: "s"}

	cond := &ir.BinaryExpr{
		Op:    "&&",
		Left:  notNull(&ir.ParamExpr{Routine: secondary, Name: "s"}),
		Right: notNull(&ir.ParamExpr{Routine: secondary, Name: "s"}),
	}

	rules := ParamSubstitutionRules(secondary, map[string]ir.Expression{"s": primaryParam})
	got := ExprOf(cond, rules).(*ir.BinaryExpr)

	left := got.Left.(*ir.BinaryExpr).Left.(*ir.ParamExpr)
	right := got.Right.(*ir.BinaryExpr).Left.(*ir.ParamExpr)
	assert.Equal(t, left, right)
	assert.NotSame(t, left, right)
	assert.NotSame(t, primaryParam, left)
}

// TestChain_AppliesInOrder verifies composed rule sets apply left to
// right in one traversal.
func TestChain_AppliesInOrder(t *testing.T) {
	// First map oob -> impl, then substitute T -> Int32.
	rules := Chain(
		UnitRules(oobUnit, implUnit),
		TypeParamRules(InstantiationMap([]string{"T"}, []ir.TypeRef{{Unit: coreUnit, Name: "Int32"}})),
	)

	tr := ir.TypeRef{Unit: oobUnit, Name: "Wrapper", GenericArgs: []ir.TypeRef{GenericParamRef("T")}}
	got := TypeRefOf(tr, rules)

	assert.True(t, got.Unit.Equal(implUnit))
	assert.Equal(t, "Int32", got.GenericArgs[0].Name)
}

// TestExprOf_NilAndBodies covers nil passthrough and body rewriting.
func TestExprOf_NilAndBodies(t *testing.T) {
	assert.Nil(t, ExprOf(nil, Rules{}))
	assert.Nil(t, BodyOf(nil, Rules{}))

	ref := routineIn(implUnit)
	body := &ir.Body{Stmts: []ir.Stmt{
		&ir.CallStmt{Call: &ir.CallExpr{Target: routineIn(oobUnit)}},
		&ir.ReturnStmt{Value: &ir.LocalExpr{Routine: ref, Name: "n"}},
	}}

	got := BodyOf(body, UnitRules(oobUnit, implUnit))
	call := got.Stmts[0].(*ir.CallStmt).Call
	assert.True(t, call.Target.DeclaringType.Unit.Equal(implUnit))
}
