package ir

// RoutineRef is a reference to a routine: name + signature + declaring
// type. A reference resolves to exactly one definition within its defining
// unit, or fails to resolve (not a real routine).
type RoutineRef struct {
	DeclaringType TypeRef   `json:"declaring_type"`
	Name          string    `json:"routine_name"`
	Params        []TypeRef `json:"params,omitempty"`
	Result        TypeRef   `json:"result,omitempty"`

	// GenericArgs bind the routine's own generic parameters (not the
	// declaring type's; those live on DeclaringType.GenericArgs).
	GenericArgs []TypeRef `json:"generic_args,omitempty"`
}

// IsInstantiated reports whether the reference or its declaring type binds
// generic arguments.
func (rr RoutineRef) IsInstantiated() bool {
	return len(rr.GenericArgs) > 0 || rr.DeclaringType.IsInstantiated()
}

// Unspecialized returns the base form of the reference: no generic
// arguments on the routine or its declaring type. Contracts are cached
// under this form only and re-specialized per request.
func (rr RoutineRef) Unspecialized() RoutineRef {
	rr.GenericArgs = nil
	rr.DeclaringType = rr.DeclaringType.Unspecialized()
	return rr
}

// Equal reports structural equality of two routine references.
func (rr RoutineRef) Equal(other RoutineRef) bool {
	if !rr.DeclaringType.Equal(other.DeclaringType) || rr.Name != other.Name {
		return false
	}
	if len(rr.Params) != len(other.Params) || len(rr.GenericArgs) != len(other.GenericArgs) {
		return false
	}
	for i := range rr.Params {
		if !rr.Params[i].Equal(other.Params[i]) {
			return false
		}
	}
	for i := range rr.GenericArgs {
		if !rr.GenericArgs[i].Equal(other.GenericArgs[i]) {
			return false
		}
	}
	return true
}

// String renders the reference for diagnostics: "Type.Name(P1,P2)".
func (rr RoutineRef) String() string {
	s := rr.DeclaringType.String() + "." + rr.Name
	if len(rr.GenericArgs) > 0 {
		s += "["
		for i, a := range rr.GenericArgs {
			if i > 0 {
				s += ","
			}
			s += a.String()
		}
		s += "]"
	}
	s += "("
	for i, p := range rr.Params {
		if i > 0 {
			s += ","
		}
		s += p.Name
	}
	return s + ")"
}

// RoutineDef is a routine definition: a method, function, or property
// accessor with a body, or an abstract/external declaration without one.
type RoutineDef struct {
	Name          string      `json:"name"`
	Params        []*ParamDef `json:"params,omitempty"`
	Result        TypeRef     `json:"result,omitempty"`
	GenericParams []string    `json:"generic_params,omitempty"`

	// Body is the routine's tree body; nil when IsAbstract or IsExternal.
	Body *Body `json:"body,omitempty"`

	IsAbstract bool `json:"is_abstract,omitempty"`
	IsExternal bool `json:"is_external,omitempty"`

	// IsPureMarked records an attribute-based purity marker on the
	// definition (no side effects, callable inside contracts).
	IsPureMarked bool `json:"is_pure_marked,omitempty"`

	// IsAccessor marks a compiler-synthesized property accessor;
	// AccessorFor names the backing field/property.
	IsAccessor  bool   `json:"is_accessor,omitempty"`
	AccessorFor string `json:"accessor_for,omitempty"`

	Attributes []string `json:"attributes,omitempty"`

	declaring *TypeDef
}

// Declaring returns the type this definition belongs to (nil for
// free-standing definitions built in tests).
func (rd *RoutineDef) Declaring() *TypeDef { return rd.declaring }

// HasBody reports whether the definition carries executable code.
func (rd *RoutineDef) HasBody() bool {
	return rd.Body != nil && !rd.IsAbstract && !rd.IsExternal
}

// IsGeneric reports whether the routine or its declaring type declares
// generic parameters.
func (rd *RoutineDef) IsGeneric() bool {
	if len(rd.GenericParams) > 0 {
		return true
	}
	return rd.declaring != nil && len(rd.declaring.GenericParams) > 0
}

// Ref builds an unspecialized reference to this definition.
func (rd *RoutineDef) Ref() RoutineRef {
	ref := RoutineRef{Name: rd.Name, Result: rd.Result}
	if rd.declaring != nil {
		ref.DeclaringType = rd.declaring.Ref()
	}
	for _, p := range rd.Params {
		ref.Params = append(ref.Params, p.Type)
	}
	return ref
}

// ParamRefs returns expressions referencing each formal parameter, in
// declaration order. Used by the aggregator to substitute one routine's
// formals for another's.
func (rd *RoutineDef) ParamRefs() []Expression {
	ref := rd.Ref()
	exprs := make([]Expression, len(rd.Params))
	for i, p := range rd.Params {
		exprs[i] = &ParamExpr{Routine: ref, Name: p.Name}
	}
	return exprs
}

// ParamDef is a formal parameter of a routine.
type ParamDef struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}
