package extract

import (
	"slices"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/rewrite"
)

// Collaborator contracts the extractors depend on. Defaults live in this
// package so a plain construction works end to end; tests substitute
// counting fakes.

// Decompiler turns a routine definition's compiled body into tree form.
// The table may be nil (no debug symbols available).
type Decompiler interface {
	Decompile(def *ir.RoutineDef, tbl DebugTable) (*ir.Body, error)
}

// Splitter separates a tree body into a contract prefix and residual
// executable code. Assumed total: always returns, and the contract part
// may be nil.
type Splitter interface {
	Split(body *ir.Body) (*ir.RoutineContract, *ir.Body)

	// SplitInvariants recognizes invariant-marker calls, used on type
	// invariant methods.
	SplitInvariants(body *ir.Body) (*ir.TypeContract, *ir.Body)
}

// PurityLookup answers attribute-based purity queries.
type PurityLookup interface {
	IsPure(def *ir.RoutineDef) bool
}

// ProxyLocator finds the concrete proxy routine holding the contract of
// an abstract routine, if one exists.
type ProxyLocator interface {
	FindProxyRoutine(base ir.RoutineRef, def *ir.RoutineDef) (*ir.RoutineDef, bool)
}

// InvariantMiner derives an implicit routine contract for a
// compiler-synthesized property accessor from the enclosing type's
// invariants that mention that property.
type InvariantMiner interface {
	MineFromInvariants(tc *ir.TypeContract, accessor *ir.RoutineDef) *ir.RoutineContract
}

// PureAttr is the attribute string the default purity lookup recognizes.
const PureAttr = "pure"

// AttributePurity is the default purity lookup: the definition's purity
// marker flag or a "pure" attribute.
type AttributePurity struct{}

// IsPure implements PurityLookup.
func (AttributePurity) IsPure(def *ir.RoutineDef) bool {
	return def.IsPureMarked || slices.Contains(def.Attributes, PureAttr)
}

// UnitProxyLocator is the default proxy lookup: it scans the abstract
// routine's own unit for a type marked as the contract proxy of the
// routine's declaring type, then matches the routine by name and
// signature.
type UnitProxyLocator struct {
	Unit *ir.CompiledUnit
}

// FindProxyRoutine implements ProxyLocator.
func (l UnitProxyLocator) FindProxyRoutine(base ir.RoutineRef, def *ir.RoutineDef) (*ir.RoutineDef, bool) {
	if l.Unit == nil {
		return nil, false
	}
	abstractType := base.DeclaringType.Unspecialized()
	for _, td := range l.Unit.Types {
		if td.ProxyFor == nil || !td.ProxyFor.Unspecialized().Equal(abstractType) {
			continue
		}
		if proxy, ok := td.FindRoutine(base); ok {
			return proxy, true
		}
	}
	return nil, false
}

// Accessor name prefixes for compiler-synthesized property accessors.
const (
	getterPrefix = "get_"
	setterPrefix = "set_"
)

// AccessorMiner is the default invariant miner. An invariant that
// mentions the accessor's backing property becomes a postcondition of
// the getter (the property read becomes the result) or a precondition of
// the setter (the property read becomes the value parameter).
type AccessorMiner struct{}

// MineFromInvariants implements InvariantMiner.
func (AccessorMiner) MineFromInvariants(tc *ir.TypeContract, accessor *ir.RoutineDef) *ir.RoutineContract {
	if tc.IsEmpty() || accessor.AccessorFor == "" {
		return nil
	}

	isGetter := len(accessor.Name) >= len(getterPrefix) && accessor.Name[:len(getterPrefix)] == getterPrefix
	isSetter := len(accessor.Name) >= len(setterPrefix) && accessor.Name[:len(setterPrefix)] == setterPrefix
	if !isGetter && !isSetter {
		return nil
	}

	var valueParam string
	if isSetter && len(accessor.Params) > 0 {
		valueParam = accessor.Params[len(accessor.Params)-1].Name
	}

	property := accessor.AccessorFor
	rules := rewrite.Rules{
		Expr: func(e ir.Expression) (ir.Expression, bool) {
			fe, ok := e.(*ir.FieldExpr)
			if !ok || fe.Field != property {
				return nil, false
			}
			if isGetter {
				return &ir.ResultExpr{Type: accessor.Result}, true
			}
			return &ir.ParamExpr{Routine: accessor.Ref(), Name: valueParam}, true
		},
	}

	mined := &ir.RoutineContract{}
	for _, inv := range tc.Invariants {
		if !mentionsField(inv.Condition, property) {
			continue
		}
		cond := rewrite.ExprOf(inv.Condition, rules)
		if isGetter {
			mined.Postconditions = append(mined.Postconditions, ir.Postcondition{Condition: cond})
		} else {
			mined.Preconditions = append(mined.Preconditions, ir.Precondition{Condition: cond})
		}
	}
	if mined.IsEmpty() {
		return nil
	}
	return mined
}

// mentionsField walks an expression for a read of the named field.
func mentionsField(e ir.Expression, field string) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ir.FieldExpr:
		return n.Field == field || mentionsField(n.Target, field)
	case *ir.CallExpr:
		if mentionsField(n.Recv, field) {
			return true
		}
		for _, a := range n.Args {
			if mentionsField(a, field) {
				return true
			}
		}
		return false
	case *ir.BinaryExpr:
		return mentionsField(n.Left, field) || mentionsField(n.Right, field)
	case *ir.UnaryExpr:
		return mentionsField(n.Operand, field)
	case *ir.OldExpr:
		return mentionsField(n.Operand, field)
	default:
		return false
	}
}
