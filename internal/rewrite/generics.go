package rewrite

import (
	"github.com/fhchina/cci/internal/ir"
)

// Generic parameter occurrences are represented as unit-less type
// references: a TypeRef whose unit identity is zero names the generic
// parameter of the enclosing definition, not a real type.

// IsGenericParam reports whether a type reference is a generic parameter
// occurrence.
func IsGenericParam(tr ir.TypeRef) bool {
	return tr.Unit == (ir.UnitIdentity{}) && len(tr.GenericArgs) == 0
}

// GenericParamRef builds a generic parameter occurrence.
func GenericParamRef(name string) ir.TypeRef {
	return ir.TypeRef{Name: name}
}

// TypeParamRules substitutes type-parameter occurrences by name.
//
// Used two ways: re-mapping a proxy routine's parameters onto an abstract
// routine's (values are parameter occurrences of the abstract side), and
// instantiating a cached base contract (values are concrete type
// references). Unmapped parameters pass through unchanged.
func TypeParamRules(subst map[string]ir.TypeRef) Rules {
	return Rules{
		TypeRef: func(tr ir.TypeRef) ir.TypeRef {
			if !IsGenericParam(tr) {
				return tr
			}
			if repl, ok := subst[tr.Name]; ok {
				return repl
			}
			return tr
		},
	}
}

// PositionalParamMap builds a name substitution from position-wise
// correspondence of two generic parameter lists: from[i] maps to an
// occurrence of to[i]. Extra names on either side are ignored.
func PositionalParamMap(from, to []string) map[string]ir.TypeRef {
	n := len(from)
	if len(to) < n {
		n = len(to)
	}
	subst := make(map[string]ir.TypeRef, n)
	for i := 0; i < n; i++ {
		subst[from[i]] = GenericParamRef(to[i])
	}
	return subst
}

// InstantiationMap builds a substitution binding generic parameter names
// to the actual type arguments of an instantiation, position-wise. Extra
// arguments beyond the parameter list are ignored.
func InstantiationMap(params []string, args []ir.TypeRef) map[string]ir.TypeRef {
	n := len(params)
	if len(args) < n {
		n = len(args)
	}
	subst := make(map[string]ir.TypeRef, n)
	for i := 0; i < n; i++ {
		subst[params[i]] = args[i]
	}
	return subst
}
