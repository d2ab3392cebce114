package rewrite

import (
	"github.com/fhchina/cci/internal/ir"
)

// UnitRules builds the unit mapping mutator: a rule set that substitutes
// target for source wherever a reference's unit identity equals source,
// copying everything else structurally unchanged.
//
// The substitution is purely identity-based, not name-based resolution: it
// assumes the two units expose structurally equivalent symbol graphs
// (same namespaces, names, signatures) for the portions contracts touch.
func UnitRules(source, target ir.UnitIdentity) Rules {
	return Rules{
		TypeRef: func(tr ir.TypeRef) ir.TypeRef {
			if tr.Unit.Equal(source) {
				tr.Unit = target
			}
			return tr
		},
	}
}

// MapRoutineRef maps a routine reference from the source unit into the
// target unit.
func MapRoutineRef(rr ir.RoutineRef, source, target ir.UnitIdentity) ir.RoutineRef {
	return RoutineRefOf(rr, UnitRules(source, target))
}

// MapTypeRef maps a type reference from the source unit into the target
// unit.
func MapTypeRef(tr ir.TypeRef, source, target ir.UnitIdentity) ir.TypeRef {
	return TypeRefOf(tr, UnitRules(source, target))
}
