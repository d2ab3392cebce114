package extract

import (
	"github.com/fhchina/cci/internal/ir"
)

// Contract-marker vocabulary. Contract code compiles to calls on a class
// named Contract at the start of a routine body; the splitter recognizes
// the prefix by target type and routine name.
const (
	// ContractClassName is the declaring type of contract-marker calls.
	ContractClassName = "Contract"

	markerRequires    = "Requires"
	markerEnsures     = "Ensures"
	markerInvariant   = "Invariant"
	markerEndContract = "EndContractBlock"
)

// StandardSplitter is the default contract-section splitter.
//
// The contract prefix of a body is the longest leading run of:
//   - assignments whose value contains an Old capture (entry-value
//     hoisting for the next Ensures)
//   - Contract.Requires(cond) calls; a generic argument on the call names
//     the exception raised on violation
//   - Contract.Ensures(cond) calls, absorbing pending Old captures
//   - a closing Contract.EndContractBlock() call
//
// The first statement outside this vocabulary ends the prefix; everything
// from it on is the residual body. Captures still pending when the prefix
// ends belong to no postcondition, so the prefix is re-cut just before
// the first of them and the assignments stay in the residual. Splitting
// is total: a body with no recognizable prefix yields a nil contract and
// the whole body as residual. The input body is never mutated; both
// results are fresh.
type StandardSplitter struct{}

// Split implements Splitter. Entry-value captures bind to the next
// Ensures; a trailing run of captures that no Ensures consumes is
// executable code, so the prefix ends before the first of them and they
// stay in the residual.
func (StandardSplitter) Split(body *ir.Body) (*ir.RoutineContract, *ir.Body) {
	if body == nil {
		return nil, nil
	}

	contract, firstUnconsumed, end := scanContractPrefix(body.Stmts, len(body.Stmts))
	if firstUnconsumed >= 0 {
		contract, _, end = scanContractPrefix(body.Stmts, firstUnconsumed)
	}

	residual := &ir.Body{Stmts: make([]ir.Stmt, 0, len(body.Stmts)-end)}
	for _, s := range body.Stmts[end:] {
		residual.Stmts = append(residual.Stmts, copyStmtForResidual(s))
	}

	if contract.IsEmpty() {
		return nil, residual
	}
	return contract, residual
}

// scanContractPrefix reads the contract vocabulary from stmts[:limit].
// It returns the collected contract, the index of the first old-value
// capture no Ensures consumed (-1 when none dangle), and the index of
// the first statement past the prefix.
func scanContractPrefix(stmts []ir.Stmt, limit int) (*ir.RoutineContract, int, int) {
	contract := &ir.RoutineContract{}
	var pending []ir.OldCapture
	firstPending := -1

	i := 0
scan:
	for ; i < limit; i++ {
		switch st := stmts[i].(type) {
		case *ir.AssignStmt:
			if !containsOld(st.Value) {
				break scan
			}
			if firstPending < 0 {
				firstPending = i
			}
			pending = append(pending, ir.OldCapture{Local: st.Local, Value: ir.CopyExpr(st.Value)})
		case *ir.CallStmt:
			if !isContractMarker(st.Call.Target) {
				break scan
			}
			switch st.Call.Target.Name {
			case markerRequires:
				pre := ir.Precondition{Condition: firstArg(st.Call)}
				if len(st.Call.Target.GenericArgs) > 0 {
					et := st.Call.Target.GenericArgs[0]
					pre.ExceptionType = &et
				}
				contract.Preconditions = append(contract.Preconditions, pre)
			case markerEnsures:
				contract.Postconditions = append(contract.Postconditions, ir.Postcondition{
					Condition: firstArg(st.Call),
					Captures:  pending,
				})
				pending = nil
				firstPending = -1
			case markerEndContract:
				i++
				break scan
			default:
				break scan
			}
		default:
			break scan
		}
	}

	return contract, firstPending, i
}

// SplitInvariants implements Splitter for type invariant methods: the
// prefix is a run of Contract.Invariant(cond) calls.
func (StandardSplitter) SplitInvariants(body *ir.Body) (*ir.TypeContract, *ir.Body) {
	if body == nil {
		return nil, nil
	}

	contract := &ir.TypeContract{}
	i := 0
	for ; i < len(body.Stmts); i++ {
		call, ok := body.Stmts[i].(*ir.CallStmt)
		if !ok || !isContractMarker(call.Call.Target) || call.Call.Target.Name != markerInvariant {
			break
		}
		contract.Invariants = append(contract.Invariants, ir.Invariant{Condition: firstArg(call.Call)})
	}

	residual := &ir.Body{Stmts: make([]ir.Stmt, 0, len(body.Stmts)-i)}
	for _, s := range body.Stmts[i:] {
		residual.Stmts = append(residual.Stmts, copyStmtForResidual(s))
	}

	if contract.IsEmpty() {
		return nil, residual
	}
	return contract, residual
}

func isContractMarker(target ir.RoutineRef) bool {
	return target.DeclaringType.Name == ContractClassName
}

func firstArg(call *ir.CallExpr) ir.Expression {
	if len(call.Args) == 0 {
		return nil
	}
	return ir.CopyExpr(call.Args[0])
}

func containsOld(e ir.Expression) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ir.OldExpr:
		return true
	case *ir.FieldExpr:
		return containsOld(n.Target)
	case *ir.CallExpr:
		if containsOld(n.Recv) {
			return true
		}
		for _, a := range n.Args {
			if containsOld(a) {
				return true
			}
		}
		return false
	case *ir.BinaryExpr:
		return containsOld(n.Left) || containsOld(n.Right)
	case *ir.UnaryExpr:
		return containsOld(n.Operand)
	default:
		return false
	}
}

func copyStmtForResidual(s ir.Stmt) ir.Stmt {
	switch n := s.(type) {
	case *ir.CallStmt:
		return &ir.CallStmt{Call: ir.CopyExpr(n.Call).(*ir.CallExpr)}
	case *ir.AssignStmt:
		return &ir.AssignStmt{Local: n.Local, Value: ir.CopyExpr(n.Value)}
	case *ir.ReturnStmt:
		return &ir.ReturnStmt{Value: ir.CopyExpr(n.Value)}
	default:
		return s
	}
}
