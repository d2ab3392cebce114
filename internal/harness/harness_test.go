package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/testutil"
)

func parserScenario(routines ...string) *Scenario {
	return &Scenario{Name: "test", Routines: routines}
}

func parserUnit() *ir.CompiledUnit {
	parse := testutil.Routine("Parse",
		testutil.Body(testutil.Requires(testutil.True())),
		testutil.Param("input", "String"))
	noop := testutil.Routine("Noop", testutil.Body())
	return testutil.Unit("Parser.Impl", "1.0", testutil.Type("Parser", parse, noop))
}

func TestRunUnitsSplitsContractPrefix(t *testing.T) {
	result, err := RunUnits(parserScenario("Parser.Parse", "Parser.Noop"), []*ir.CompiledUnit{parserUnit()})
	require.NoError(t, err)

	parse, ok := result.Routine("Parser.Parse")
	require.True(t, ok)
	assert.Equal(t, "Parser.Impl/1.0!Parser.Parse(String)", parse.Ref)
	assert.False(t, parse.Absent)
	assert.Equal(t, []string{"true"}, parse.Requires)

	noop, ok := result.Routine("Parser.Noop")
	require.True(t, ok)
	assert.True(t, noop.Absent)
}

func TestRunUnitsResolvesProxyContracts(t *testing.T) {
	iface := testutil.AbstractType("IParser",
		testutil.Routine("Parse", nil, testutil.Param("input", "String")))
	target := ir.TypeRef{Unit: ir.UnitIdentity{Name: "Parser.Api", Version: "1.0"}, Name: "IParser"}
	proxy := testutil.ProxyType("ParserContracts", target,
		testutil.Routine("Parse",
			testutil.Body(testutil.Requires(testutil.True()), testutil.EndContractBlock()),
			testutil.Param("input", "String")))
	unit := testutil.Unit("Parser.Api", "1.0", iface, proxy)

	result, err := RunUnits(parserScenario("IParser.Parse"), []*ir.CompiledUnit{unit})
	require.NoError(t, err)

	parse, ok := result.Routine("IParser.Parse")
	require.True(t, ok)
	assert.False(t, parse.Absent)
	assert.Equal(t, []string{"true"}, parse.Requires)
}

func TestRunUnitsAggregatesContractUnits(t *testing.T) {
	contracts := testutil.Unit("Parser.Contracts", "1.0",
		testutil.Type("Parser",
			testutil.Routine("Noop", testutil.Body(testutil.Requires(testutil.False())))))

	scenario := &Scenario{
		Name:      "aggregate",
		Primary:   "Parser.Impl",
		Contracts: []string{"Parser.Contracts"},
		Routines:  []string{"Parser.Noop"},
	}
	result, err := RunUnits(scenario, []*ir.CompiledUnit{parserUnit(), contracts})
	require.NoError(t, err)

	noop, ok := result.Routine("Parser.Noop")
	require.True(t, ok)
	assert.False(t, noop.Absent)
	assert.Equal(t, []string{"false"}, noop.Requires)
}

func TestRunUnitsUnknownSymbols(t *testing.T) {
	units := []*ir.CompiledUnit{parserUnit()}

	_, err := RunUnits(parserScenario("Parser.Missing"), units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `routine "Parser.Missing" not found`)

	_, err = RunUnits(&Scenario{Name: "t", Types: []string{"Missing"}}, units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `type "Missing" not found`)
}

func TestRunUnitsUnknownPrimary(t *testing.T) {
	scenario := &Scenario{Name: "t", Primary: "Nope", Routines: []string{"Parser.Parse"}}
	_, err := RunUnits(scenario, []*ir.CompiledUnit{parserUnit()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not among sources")
}

func TestCheckReportsMismatches(t *testing.T) {
	one := 1
	scenario := parserScenario("Parser.Parse", "Parser.Noop")
	scenario.Expect = []Expectation{
		{Routine: "Parser.Parse", HasContract: false},
		{Routine: "Parser.Noop", HasContract: false},
		{Routine: "Parser.Parse", HasContract: true, Postconditions: &one},
	}

	result, err := RunUnits(scenario, []*ir.CompiledUnit{parserUnit()})
	require.NoError(t, err)

	failures := scenario.Check(result)
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "has_contract = true, want false")
	assert.Contains(t, failures[1], "0 postcondition(s), want 1")
}

func TestRenderExpr(t *testing.T) {
	rd := testutil.Routine("Parse", nil, testutil.Param("input", "String"))
	testutil.Unit("Parser.Impl", "1.0", testutil.Type("Parser", rd))

	tests := []struct {
		name string
		expr ir.Expression
		want string
	}{
		{"bool literal", testutil.True(), "true"},
		{"string literal", &ir.Literal{Kind: ir.LiteralString, Value: "x"}, `"x"`},
		{"param", testutil.ParamRef(rd, "input"), "input"},
		{"not null", testutil.NotNull(rd, "input"), "(input != null)"},
		{
			"negation",
			&ir.UnaryExpr{Op: "!", Operand: testutil.False()},
			"!false",
		},
		{
			"old of field",
			&ir.OldExpr{Operand: &ir.FieldExpr{
				Target:        testutil.ParamRef(rd, "input"),
				DeclaringType: testutil.CoreType("String"),
				Field:         "Length",
			}},
			"old(input.Length)",
		},
		{
			"result comparison",
			&ir.BinaryExpr{Op: ">=", Left: &ir.ResultExpr{}, Right: testutil.Int("0")},
			"(result >= 0)",
		},
		{
			"static call",
			&ir.CallExpr{
				Target: ir.RoutineRef{
					DeclaringType: testutil.CoreType("String"),
					Name:          "IsNullOrEmpty",
				},
				Args: []ir.Expression{testutil.ParamRef(rd, "input")},
			},
			"String.IsNullOrEmpty(input)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderExpr(tt.expr))
		})
	}
}
