package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhchina/cci/internal/ir"
)

func compileFixture(t *testing.T, src string) (*ir.CompiledUnit, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileUnit(v.LookupPath(cue.ParsePath("unit")))
}

func TestCompileUnitBasic(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name:     "Parser.Impl"
			version:  "1.0"
			guid:     "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
			location: "fixtures/parser.unit"

			types: Parser: {
				fields: count: { type: "Int32" }
				routines: {
					Parse: {
						params: [{ name: "input", type: "String" }]
						result: "Token"
					}
					Hash: {
						external: true
						pure:     true
						attributes: ["pure"]
					}
				}
			}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "Parser.Impl", unit.Identity.Name)
	assert.Equal(t, "1.0", unit.Identity.Version)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", unit.Identity.GUID.String())
	assert.Equal(t, "fixtures/parser.unit", unit.Location)

	require.Len(t, unit.Types, 1)
	parser := unit.Types[0]
	assert.Equal(t, "Parser", parser.Name)

	require.Len(t, parser.Fields, 1)
	assert.Equal(t, "count", parser.Fields[0].Name)
	assert.Equal(t, "Int32", parser.Fields[0].Type.Name)
	assert.Equal(t, unit.Identity, parser.Fields[0].Type.Unit)

	require.Len(t, parser.Routines, 2)
	parse := parser.Routines[0]
	assert.Equal(t, "Parse", parse.Name)
	require.Len(t, parse.Params, 1)
	assert.Equal(t, "input", parse.Params[0].Name)
	assert.Equal(t, "String", parse.Params[0].Type.Name)
	assert.Equal(t, "Token", parse.Result.Name)

	hash := parser.Routines[1]
	assert.True(t, hash.IsExternal)
	assert.True(t, hash.IsPureMarked)
	assert.Equal(t, []string{"pure"}, hash.Attributes)
}

func TestCompileUnitMissingName(t *testing.T) {
	_, err := compileFixture(t, `
		unit: {
			version: "1.0"
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileUnitBadGUID(t *testing.T) {
	_, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			guid: "not-a-guid"
		}
	`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "guid", ce.Field)
	assert.Contains(t, ce.Message, "RFC 4122")
}

func TestCompileUnitGenericScope(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Collections"
			types: Box: {
				generics: ["T"]
				fields: item: { type: "T", contract_only: true }
				routines: {
					Get: { result: "T" }
					Map: {
						generics: ["U"]
						params: [{ name: "seed", type: "U" }]
						result: "U"
					}
				}
			}
		}
	`)
	require.NoError(t, err)

	box := unit.Types[0]
	assert.Equal(t, []string{"T"}, box.GenericParams)

	// In-scope generic names resolve without a unit identity.
	item := box.Fields[0]
	assert.True(t, item.ContractOnly)
	assert.Equal(t, ir.TypeRef{Name: "T"}, item.Type)

	get := box.Routines[0]
	assert.Equal(t, ir.TypeRef{Name: "T"}, get.Result)

	mapR := box.Routines[1]
	assert.Equal(t, []string{"U"}, mapR.GenericParams)
	assert.Equal(t, ir.TypeRef{Name: "U"}, mapR.Params[0].Type)
	assert.Equal(t, ir.TypeRef{Name: "U"}, mapR.Result)
}

func TestCompileUnitForeignReference(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			types: Parser: {
				routines: Parse: {
					params: [{ name: "input", type: "System.Core!String" }]
				}
			}
		}
	`)
	require.NoError(t, err)

	param := unit.Types[0].Routines[0].Params[0]
	assert.Equal(t, "System.Core", param.Type.Unit.Name)
	assert.Equal(t, "String", param.Type.Name)
}

func TestCompileUnitProxyFor(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Parser.Contracts"
			types: {
				IParser: {
					interface: true
					routines: Parse: { abstract: true }
				}
				ParserContracts: {
					proxy_for: "IParser"
					routines: Parse: {}
				}
			}
		}
	`)
	require.NoError(t, err)

	require.Len(t, unit.Types, 2)
	proxy := unit.Types[1]
	require.NotNil(t, proxy.ProxyFor)
	assert.Equal(t, "IParser", proxy.ProxyFor.Name)
	assert.Equal(t, unit.Identity, proxy.ProxyFor.Unit)
}

func TestCompileUnitBodyTree(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			types: Parser: {
				routines: Parse: {
					params: [{ name: "input", type: "String" }]
					body: {
						stmts: [{
							stmt: "call"
							call: {
								node: "call"
								target: {
									declaring_type: {
										unit: { name: "System.Core", version: "4.0" }
										type_name: "Contract"
									}
									routine_name: "Requires"
									params: [{
										unit: { name: "System.Core", version: "4.0" }
										type_name: "Boolean"
									}]
								}
								args: [{ node: "literal", kind: "bool", value: "true" }]
							}
						}, {
							stmt: "return"
						}]
					}
				}
			}
		}
	`)
	require.NoError(t, err)

	parse := unit.Types[0].Routines[0]
	require.NotNil(t, parse.Body)
	require.Len(t, parse.Body.Stmts, 2)

	call, ok := parse.Body.Stmts[0].(*ir.CallStmt)
	require.True(t, ok)
	assert.Equal(t, "Requires", call.Call.Target.Name)
	assert.Equal(t, "Contract", call.Call.Target.DeclaringType.Name)
	require.Len(t, call.Call.Args, 1)
	lit, ok := call.Call.Args[0].(*ir.Literal)
	require.True(t, ok)
	assert.Equal(t, ir.LiteralBool, lit.Kind)

	_, ok = parse.Body.Stmts[1].(*ir.ReturnStmt)
	assert.True(t, ok)
}

func TestCompileUnitMalformedBody(t *testing.T) {
	_, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			types: Parser: {
				routines: Parse: {
					body: {
						stmts: [{ stmt: "teleport" }]
					}
				}
			}
		}
	`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Field, "body")
}

func TestCompileUnitAttachesDefinitions(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			types: Parser: {
				routines: Parse: {
					params: [{ name: "input", type: "String" }]
				}
			}
		}
	`)
	require.NoError(t, err)

	ref := ir.RoutineRef{
		DeclaringType: ir.TypeRef{Unit: unit.Identity, Name: "Parser"},
		Name:          "Parse",
		Params:        []ir.TypeRef{{Unit: unit.Identity, Name: "String"}},
	}
	rd, ok := unit.ResolveRoutine(ref)
	require.True(t, ok)
	assert.Equal(t, "Parse", rd.Name)
	require.NotNil(t, rd.Declaring())
	assert.Equal(t, "Parser", rd.Declaring().Name)
}

func TestCompileUnitAccessor(t *testing.T) {
	unit, err := compileFixture(t, `
		unit: {
			name: "Parser.Impl"
			types: Parser: {
				fields: count: { type: "Int32" }
				routines: get_Count: {
					result:       "Int32"
					accessor_for: "Count"
				}
			}
		}
	`)
	require.NoError(t, err)

	acc := unit.Types[0].Routines[0]
	assert.True(t, acc.IsAccessor)
	assert.Equal(t, "Count", acc.AccessorFor)
}
