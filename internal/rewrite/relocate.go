package rewrite

import (
	"github.com/fhchina/cci/internal/ir"
)

// RelocationRules re-homes parameter and local references from one
// routine's context into another's: any ParamExpr or LocalExpr whose
// routine matches from (compared unspecialized) is rebound to to.
//
// Parameter correspondence is by name when names agree, else by position
// via fromParams/toParams; locals keep their names.
func RelocationRules(from, to ir.RoutineRef, fromParams, toParams []string) Rules {
	fromBase := from.Unspecialized()
	rename := make(map[string]string, len(fromParams))
	n := len(fromParams)
	if len(toParams) < n {
		n = len(toParams)
	}
	for i := 0; i < n; i++ {
		rename[fromParams[i]] = toParams[i]
	}
	return Rules{
		Expr: func(e ir.Expression) (ir.Expression, bool) {
			switch node := e.(type) {
			case *ir.ParamExpr:
				if !node.Routine.Unspecialized().Equal(fromBase) {
					return nil, false
				}
				name := node.Name
				if renamed, ok := rename[name]; ok {
					name = renamed
				}
				return &ir.ParamExpr{Routine: to, Name: name}, true
			case *ir.LocalExpr:
				if !node.Routine.Unspecialized().Equal(fromBase) {
					return nil, false
				}
				return &ir.LocalExpr{Routine: to, Name: node.Name}, true
			}
			return nil, false
		},
	}
}

// ParamSubstitutionRules replaces parameter references of the routine of
// by arbitrary expressions, by parameter name. Used by the aggregator to
// read a secondary unit's contract against the primary routine's formals.
// Unmapped parameters pass through unchanged.
func ParamSubstitutionRules(of ir.RoutineRef, repl map[string]ir.Expression) Rules {
	base := of.Unspecialized()
	return Rules{
		Expr: func(e ir.Expression) (ir.Expression, bool) {
			p, ok := e.(*ir.ParamExpr)
			if !ok || !p.Routine.Unspecialized().Equal(base) {
				return nil, false
			}
			if out, ok := repl[p.Name]; ok {
				return ir.CopyExpr(out), true
			}
			return nil, false
		},
	}
}
