package ir

// TypeRef is a reference to a type, possibly defined in another unit.
//
// A reference with GenericArgs is an instantiation of a generic
// definition. Unspecialized() strips instantiation recursively, yielding
// the form contracts are cached under.
type TypeRef struct {
	Unit        UnitIdentity `json:"unit"`
	Name        string       `json:"type_name"`
	GenericArgs []TypeRef    `json:"generic_args,omitempty"`
}

// IsInstantiated reports whether the reference binds generic arguments.
func (tr TypeRef) IsInstantiated() bool {
	return len(tr.GenericArgs) > 0
}

// Unspecialized returns the uninstantiated form of the reference.
func (tr TypeRef) Unspecialized() TypeRef {
	tr.GenericArgs = nil
	return tr
}

// Equal reports structural equality of two type references.
func (tr TypeRef) Equal(other TypeRef) bool {
	if !tr.Unit.Equal(other.Unit) || tr.Name != other.Name {
		return false
	}
	if len(tr.GenericArgs) != len(other.GenericArgs) {
		return false
	}
	for i := range tr.GenericArgs {
		if !tr.GenericArgs[i].Equal(other.GenericArgs[i]) {
			return false
		}
	}
	return true
}

// String renders the reference for diagnostics: "Unit!Name" or
// "Unit!Name[Arg,...]".
func (tr TypeRef) String() string {
	s := tr.Unit.String() + "!" + tr.Name
	if len(tr.GenericArgs) > 0 {
		s += "["
		for i, a := range tr.GenericArgs {
			if i > 0 {
				s += ","
			}
			s += a.String()
		}
		s += "]"
	}
	return s
}

// TypeDef is a type definition inside a compiled unit.
type TypeDef struct {
	Name          string        `json:"name"`
	GenericParams []string      `json:"generic_params,omitempty"`
	Routines      []*RoutineDef `json:"routines,omitempty"`
	Fields        []*FieldDef   `json:"fields,omitempty"`

	// Invariants is the type contract as written on the definition, nil
	// when the type carries none. Extractors return merged copies, never
	// this value.
	Invariants *TypeContract `json:"invariants,omitempty"`

	// ProxyFor marks a contract-proxy class: a concrete type that exists
	// solely to hold the contracts of the named abstract/interface type.
	ProxyFor *TypeRef `json:"proxy_for,omitempty"`

	IsInterface bool `json:"is_interface,omitempty"`
	IsAbstract  bool `json:"is_abstract,omitempty"`

	unit *CompiledUnit
}

// Unit returns the unit this definition belongs to. Set once by the
// loader via Attach; nil for free-standing definitions built in tests.
func (td *TypeDef) Unit() *CompiledUnit { return td.unit }

// Attach wires a unit's definitions back to the unit. Called exactly once
// by the loader after construction; not part of the immutable surface.
func (cu *CompiledUnit) Attach() {
	for _, td := range cu.Types {
		td.unit = cu
		for _, rd := range td.Routines {
			rd.declaring = td
		}
	}
}

// Ref builds a reference to this definition in its unit.
func (td *TypeDef) Ref() TypeRef {
	var unit UnitIdentity
	if td.unit != nil {
		unit = td.unit.Identity
	}
	return TypeRef{Unit: unit, Name: td.Name}
}

// FindRoutine locates a routine by name and signature.
//
// Parameter types are compared unspecialized so an instantiated reference
// finds the generic definition.
func (td *TypeDef) FindRoutine(ref RoutineRef) (*RoutineDef, bool) {
	for _, rd := range td.Routines {
		if rd.Name != ref.Name || len(rd.Params) != len(ref.Params) {
			continue
		}
		match := true
		for i, p := range rd.Params {
			if p.Type.Unspecialized().Name != ref.Params[i].Unspecialized().Name {
				match = false
				break
			}
		}
		if match {
			return rd, true
		}
	}
	return nil, false
}

// FindField locates a field by name.
func (td *TypeDef) FindField(name string) (*FieldDef, bool) {
	for _, fd := range td.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return nil, false
}

// FieldDef is a field definition inside a type.
type FieldDef struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`

	// ContractOnly marks auxiliary fields that exist only for use inside
	// contract expressions.
	ContractOnly bool `json:"contract_only,omitempty"`
}
