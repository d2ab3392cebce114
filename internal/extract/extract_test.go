package extract

import (
	"github.com/fhchina/cci/internal/ir"
)

// Shared fixtures and counting fakes for the extractor tests.

var (
	implIdentity = ir.UnitIdentity{Name: "Parser.Impl", Version: "1.0"}
	oobIdentity  = ir.UnitIdentity{Name: "Parser.Contracts", Version: "1.0"}
	coreIdentity = ir.UnitIdentity{Name: "System.Core", Version: "4.0"}
)

func markerRef(name string, genericArgs ...ir.TypeRef) ir.RoutineRef {
	return ir.RoutineRef{
		DeclaringType: ir.TypeRef{Unit: coreIdentity, Name: ContractClassName},
		Name:          name,
		GenericArgs:   genericArgs,
	}
}

func requiresStmt(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{Target: markerRef(markerRequires), Args: []ir.Expression{cond}}}
}

func requiresWithException(cond ir.Expression, exc ir.TypeRef) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{Target: markerRef(markerRequires, exc), Args: []ir.Expression{cond}}}
}

func ensuresStmt(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{Target: markerRef(markerEnsures), Args: []ir.Expression{cond}}}
}

func invariantStmt(cond ir.Expression) ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{Target: markerRef(markerInvariant), Args: []ir.Expression{cond}}}
}

func endContractStmt() ir.Stmt {
	return &ir.CallStmt{Call: &ir.CallExpr{Target: markerRef(markerEndContract)}}
}

func nullLit() ir.Expression {
	return &ir.Literal{Kind: ir.LiteralNull, Value: "null"}
}

func notNull(e ir.Expression) ir.Expression {
	return &ir.BinaryExpr{Op: "!=", Left: e, Right: nullLit()}
}

func paramOf(ref ir.RoutineRef, name string) *ir.ParamExpr {
	return &ir.ParamExpr{Routine: ref, Name: name}
}

// countingDecompiler counts calls; Fail, when set, makes every call
// return a DecompileError wrapping it.
type countingDecompiler struct {
	Calls int
	Fail  error
}

func (d *countingDecompiler) Decompile(def *ir.RoutineDef, tbl DebugTable) (*ir.Body, error) {
	d.Calls++
	if d.Fail != nil {
		return nil, &DecompileError{Routine: def.Ref(), Err: d.Fail}
	}
	return TreeDecompiler{}.Decompile(def, tbl)
}

// residualRecorder records listener notifications in order.
type residualRecorder struct {
	Defs   []*ir.RoutineDef
	Bodies []*ir.Body
}

func (r *residualRecorder) OnResidualBody(def *ir.RoutineDef, body *ir.Body) {
	r.Defs = append(r.Defs, def)
	r.Bodies = append(r.Bodies, body)
}
