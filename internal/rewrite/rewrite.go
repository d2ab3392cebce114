// Package rewrite provides pure structural rewriting over contract
// graphs.
//
// Every function here takes a tree and returns a new tree: inputs are
// never mutated, so the same cached contract can be rewritten for many
// instantiations without aliasing hazards. Unchanged subtrees may be
// shared between input and output only when the caller passed a fresh
// copy it owns; callers that keep the input alive should pass
// Copy()-produced trees.
package rewrite

import (
	"github.com/fhchina/cci/internal/ir"
)

// Rules is a set of rewrite hooks applied during a traversal.
//
// Hooks compose: the driver rewrites children first, applies TypeRef /
// RoutineRef hooks to embedded references, then offers the rebuilt node
// to Expr. An Expr hook that returns (replacement, true) substitutes the
// node wholesale; the replacement is not descended into.
type Rules struct {
	// TypeRef rewrites a type reference. Applied after generic arguments
	// have been rewritten. nil means identity.
	TypeRef func(ir.TypeRef) ir.TypeRef

	// RoutineRef rewrites a routine reference. Applied after its
	// component type references have been rewritten. nil means identity.
	RoutineRef func(ir.RoutineRef) ir.RoutineRef

	// Expr replaces whole expression nodes. Offered the rebuilt node;
	// returning (x, true) substitutes x without further descent.
	Expr func(ir.Expression) (ir.Expression, bool)
}

// Chain composes rule sets left to right: each traversal hook applies
// every set's hook in order.
func Chain(sets ...Rules) Rules {
	return Rules{
		TypeRef: func(tr ir.TypeRef) ir.TypeRef {
			for _, r := range sets {
				if r.TypeRef != nil {
					tr = r.TypeRef(tr)
				}
			}
			return tr
		},
		RoutineRef: func(rr ir.RoutineRef) ir.RoutineRef {
			for _, r := range sets {
				if r.RoutineRef != nil {
					rr = r.RoutineRef(rr)
				}
			}
			return rr
		},
		Expr: func(e ir.Expression) (ir.Expression, bool) {
			replaced := false
			for _, r := range sets {
				if r.Expr == nil {
					continue
				}
				if out, ok := r.Expr(e); ok {
					e = out
					replaced = true
				}
			}
			return e, replaced
		},
	}
}

// TypeRefOf rewrites a single type reference (generic arguments first,
// then the hook on the whole reference).
func TypeRefOf(tr ir.TypeRef, r Rules) ir.TypeRef {
	if len(tr.GenericArgs) > 0 {
		args := make([]ir.TypeRef, len(tr.GenericArgs))
		for i, a := range tr.GenericArgs {
			args[i] = TypeRefOf(a, r)
		}
		tr.GenericArgs = args
	}
	if r.TypeRef != nil {
		tr = r.TypeRef(tr)
	}
	return tr
}

// RoutineRefOf rewrites a single routine reference: its declaring type,
// parameter, result, and generic-argument references, then the hook on
// the whole reference.
func RoutineRefOf(rr ir.RoutineRef, r Rules) ir.RoutineRef {
	rr.DeclaringType = TypeRefOf(rr.DeclaringType, r)
	if len(rr.Params) > 0 {
		params := make([]ir.TypeRef, len(rr.Params))
		for i, p := range rr.Params {
			params[i] = TypeRefOf(p, r)
		}
		rr.Params = params
	}
	rr.Result = TypeRefOf(rr.Result, r)
	if len(rr.GenericArgs) > 0 {
		args := make([]ir.TypeRef, len(rr.GenericArgs))
		for i, a := range rr.GenericArgs {
			args[i] = TypeRefOf(a, r)
		}
		rr.GenericArgs = args
	}
	if r.RoutineRef != nil {
		rr = r.RoutineRef(rr)
	}
	return rr
}

// ExprOf rewrites an expression tree bottom-up. nil rewrites to nil.
func ExprOf(e ir.Expression, r Rules) ir.Expression {
	if e == nil {
		return nil
	}
	var rebuilt ir.Expression
	switch n := e.(type) {
	case *ir.Literal:
		c := *n
		rebuilt = &c
	case *ir.ParamExpr:
		rebuilt = &ir.ParamExpr{Routine: RoutineRefOf(n.Routine, r), Name: n.Name}
	case *ir.LocalExpr:
		rebuilt = &ir.LocalExpr{Routine: RoutineRefOf(n.Routine, r), Name: n.Name}
	case *ir.FieldExpr:
		rebuilt = &ir.FieldExpr{
			Target:        ExprOf(n.Target, r),
			DeclaringType: TypeRefOf(n.DeclaringType, r),
			Field:         n.Field,
		}
	case *ir.CallExpr:
		call := &ir.CallExpr{
			Target:  RoutineRefOf(n.Target, r),
			Recv:    ExprOf(n.Recv, r),
			Virtual: n.Virtual,
		}
		for _, a := range n.Args {
			call.Args = append(call.Args, ExprOf(a, r))
		}
		rebuilt = call
	case *ir.BinaryExpr:
		rebuilt = &ir.BinaryExpr{Op: n.Op, Left: ExprOf(n.Left, r), Right: ExprOf(n.Right, r)}
	case *ir.UnaryExpr:
		rebuilt = &ir.UnaryExpr{Op: n.Op, Operand: ExprOf(n.Operand, r)}
	case *ir.OldExpr:
		rebuilt = &ir.OldExpr{Operand: ExprOf(n.Operand, r)}
	case *ir.ResultExpr:
		rebuilt = &ir.ResultExpr{Type: TypeRefOf(n.Type, r)}
	default:
		panic("rewrite: unknown expression node")
	}
	if r.Expr != nil {
		if out, ok := r.Expr(rebuilt); ok {
			return out
		}
	}
	return rebuilt
}

// BodyOf rewrites a body statement by statement. nil rewrites to nil.
func BodyOf(b *ir.Body, r Rules) *ir.Body {
	if b == nil {
		return nil
	}
	out := &ir.Body{Stmts: make([]ir.Stmt, 0, len(b.Stmts))}
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *ir.CallStmt:
			call := ExprOf(n.Call, r)
			if ce, ok := call.(*ir.CallExpr); ok {
				out.Stmts = append(out.Stmts, &ir.CallStmt{Call: ce})
			} else {
				// An Expr hook replaced the call with a non-call; keep it
				// evaluable by wrapping in an assignment to a throwaway.
				out.Stmts = append(out.Stmts, &ir.AssignStmt{Local: "_", Value: call})
			}
		case *ir.AssignStmt:
			out.Stmts = append(out.Stmts, &ir.AssignStmt{Local: n.Local, Value: ExprOf(n.Value, r)})
		case *ir.ReturnStmt:
			out.Stmts = append(out.Stmts, &ir.ReturnStmt{Value: ExprOf(n.Value, r)})
		default:
			panic("rewrite: unknown statement node")
		}
	}
	return out
}

// RoutineContractOf rewrites every expression and reference in a routine
// contract. nil rewrites to nil.
func RoutineContractOf(rc *ir.RoutineContract, r Rules) *ir.RoutineContract {
	if rc == nil {
		return nil
	}
	out := &ir.RoutineContract{IsPure: rc.IsPure}
	for _, pre := range rc.Preconditions {
		cp := ir.Precondition{Condition: ExprOf(pre.Condition, r)}
		if pre.ExceptionType != nil {
			et := TypeRefOf(*pre.ExceptionType, r)
			cp.ExceptionType = &et
		}
		out.Preconditions = append(out.Preconditions, cp)
	}
	for _, post := range rc.Postconditions {
		cp := ir.Postcondition{Condition: ExprOf(post.Condition, r)}
		for _, capture := range post.Captures {
			cp.Captures = append(cp.Captures, ir.OldCapture{Local: capture.Local, Value: ExprOf(capture.Value, r)})
		}
		out.Postconditions = append(out.Postconditions, cp)
	}
	return out
}

// TypeContractOf rewrites every expression and reference in a type
// contract, including auxiliary contract-only fields and methods.
// nil rewrites to nil.
func TypeContractOf(tc *ir.TypeContract, r Rules) *ir.TypeContract {
	if tc == nil {
		return nil
	}
	out := &ir.TypeContract{}
	for _, inv := range tc.Invariants {
		out.Invariants = append(out.Invariants, ir.Invariant{Condition: ExprOf(inv.Condition, r)})
	}
	for _, fd := range tc.ContractFields {
		f := *fd
		f.Type = TypeRefOf(fd.Type, r)
		out.ContractFields = append(out.ContractFields, &f)
	}
	for _, md := range tc.ContractMethods {
		m := *md
		m.Result = TypeRefOf(md.Result, r)
		m.Params = nil
		for _, p := range md.Params {
			pc := *p
			pc.Type = TypeRefOf(p.Type, r)
			m.Params = append(m.Params, &pc)
		}
		m.Body = BodyOf(md.Body, r)
		out.ContractMethods = append(out.ContractMethods, &m)
	}
	return out
}
