// Package testutil provides fixture constructors for tests that need
// compiled units and contract-marker bodies without going through the
// CUE loader.
package testutil

import (
	"github.com/fhchina/cci/internal/ir"
)

// CoreIdentity is the identity of the fixture unit declaring the
// Contract marker class and the primitive types.
var CoreIdentity = ir.UnitIdentity{Name: "System.Core", Version: "4.0"}

// CoreType references a type in the fixture core unit.
func CoreType(name string) ir.TypeRef {
	return ir.TypeRef{Unit: CoreIdentity, Name: name}
}

// Unit builds an attached compiled unit from type definitions.
func Unit(name, version string, types ...*ir.TypeDef) *ir.CompiledUnit {
	cu := &ir.CompiledUnit{
		Identity: ir.UnitIdentity{Name: name, Version: version},
		Types:    types,
	}
	cu.Attach()
	return cu
}

// Type builds a concrete type definition.
func Type(name string, routines ...*ir.RoutineDef) *ir.TypeDef {
	return &ir.TypeDef{Name: name, Routines: routines}
}

// AbstractType builds an abstract type whose routines are all declared
// abstract and stripped of bodies.
func AbstractType(name string, routines ...*ir.RoutineDef) *ir.TypeDef {
	for _, rd := range routines {
		rd.IsAbstract = true
		rd.Body = nil
	}
	return &ir.TypeDef{Name: name, IsAbstract: true, Routines: routines}
}

// ProxyType builds a concrete proxy holding the contracts of target.
func ProxyType(name string, target ir.TypeRef, routines ...*ir.RoutineDef) *ir.TypeDef {
	t := target
	return &ir.TypeDef{Name: name, ProxyFor: &t, Routines: routines}
}

// Routine builds a routine definition with a body. A nil body leaves the
// routine declared but empty, which extractors treat as uncontracted.
func Routine(name string, body *ir.Body, params ...*ir.ParamDef) *ir.RoutineDef {
	return &ir.RoutineDef{Name: name, Params: params, Body: body}
}

// Param builds a formal parameter of a core primitive type.
func Param(name, typeName string) *ir.ParamDef {
	return &ir.ParamDef{Name: name, Type: CoreType(typeName)}
}

// Body builds a tree body, appending a trailing return so the residual
// section is never empty.
func Body(stmts ...ir.Stmt) *ir.Body {
	return &ir.Body{Stmts: append(stmts, &ir.ReturnStmt{})}
}

// markerRef builds a reference to a Contract marker routine.
func markerRef(name string, params ...ir.TypeRef) ir.RoutineRef {
	return ir.RoutineRef{
		DeclaringType: CoreType("Contract"),
		Name:          name,
		Params:        params,
	}
}

// Requires builds a Contract.Requires(cond) marker statement.
func Requires(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{
		Target: markerRef("Requires", CoreType("Boolean")),
		Args:   []ir.Expression{cond},
	}}
}

// Ensures builds a Contract.Ensures(cond) marker statement.
func Ensures(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{
		Target: markerRef("Ensures", CoreType("Boolean")),
		Args:   []ir.Expression{cond},
	}}
}

// Invariant builds a Contract.Invariant(cond) marker statement.
func Invariant(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{
		Target: markerRef("Invariant", CoreType("Boolean")),
		Args:   []ir.Expression{cond},
	}}
}

// EndContractBlock builds the closing marker statement.
func EndContractBlock() ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{
		Target: markerRef("EndContractBlock"),
	}}
}

// True is a boolean true literal.
func True() ir.Expression {
	return &ir.Literal{Kind: ir.LiteralBool, Value: "true"}
}

// False is a boolean false literal.
func False() ir.Expression {
	return &ir.Literal{Kind: ir.LiteralBool, Value: "false"}
}

// Int is an integer literal.
func Int(value string) ir.Expression {
	return &ir.Literal{Kind: ir.LiteralInt, Value: value}
}

// ParamRef references a formal parameter of a routine.
func ParamRef(rd *ir.RoutineDef, name string) ir.Expression {
	return &ir.ParamExpr{Routine: rd.Ref(), Name: name}
}

// NotNull builds the "p != null" condition on a routine parameter.
func NotNull(rd *ir.RoutineDef, param string) ir.Expression {
	return &ir.BinaryExpr{
		Op:    "!=",
		Left:  ParamRef(rd, param),
		Right: &ir.Literal{Kind: ir.LiteralNull, Value: "null"},
	}
}
