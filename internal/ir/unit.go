package ir

import (
	"github.com/google/uuid"
)

// UnitIdentity identifies a compiled unit.
//
// Two identities are equal when both carry a GUID and the GUIDs match, or
// when neither does and Name+Version match. A GUID on one side only is a
// mismatch: contract-only side channels are built from the same sources
// but stamped with their own GUIDs, and must not alias the implementation
// unit by accident.
type UnitIdentity struct {
	Name    string    `json:"name"`
	Version string    `json:"version,omitempty"`
	GUID    uuid.UUID `json:"guid,omitempty"`
}

// Equal reports whether two unit identities refer to the same unit.
func (u UnitIdentity) Equal(other UnitIdentity) bool {
	if u.GUID != uuid.Nil || other.GUID != uuid.Nil {
		return u.GUID == other.GUID
	}
	return u.Name == other.Name && u.Version == other.Version
}

// String renders the identity for diagnostics: "Name/Version".
func (u UnitIdentity) String() string {
	if u.Version == "" {
		return u.Name
	}
	return u.Name + "/" + u.Version
}

// CompiledUnit is a loaded module/library: a closed set of type and
// routine definitions under one identity.
//
// Units are immutable after load. Extractors hold units by pointer and
// never modify them; everything they derive (contracts, rewritten trees)
// is freshly allocated.
type CompiledUnit struct {
	Identity UnitIdentity `json:"identity"`

	// Location is the path the unit was loaded from. The debug-symbol
	// sidecar path is derived from it by extension substitution.
	Location string `json:"location,omitempty"`

	Types []*TypeDef `json:"types"`
}

// ResolveType resolves a type reference inside this unit.
//
// Resolution is by name against the unit's definitions; generic arguments
// on the reference are ignored (an instantiation resolves to the generic
// definition it instantiates). Returns false when the reference names a
// type this unit does not define.
func (cu *CompiledUnit) ResolveType(ref TypeRef) (*TypeDef, bool) {
	if !cu.Identity.Equal(ref.Unit) {
		return nil, false
	}
	for _, td := range cu.Types {
		if td.Name == ref.Name {
			return td, true
		}
	}
	return nil, false
}

// ResolveRoutine resolves a routine reference inside this unit.
//
// The declaring type is resolved first, then the routine by name and
// parameter arity/types. Generic arguments on the reference are ignored
// for lookup (instantiations resolve to the generic definition).
func (cu *CompiledUnit) ResolveRoutine(ref RoutineRef) (*RoutineDef, bool) {
	td, ok := cu.ResolveType(ref.DeclaringType)
	if !ok {
		return nil, false
	}
	return td.FindRoutine(ref)
}

// TypeRefTo builds a reference to a type defined in this unit.
func (cu *CompiledUnit) TypeRefTo(name string, args ...TypeRef) TypeRef {
	return TypeRef{Unit: cu.Identity, Name: name, GenericArgs: args}
}
