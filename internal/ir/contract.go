package ir

// Precondition is a condition the caller must establish, with an optional
// exception type raised on violation.
type Precondition struct {
	Condition     Expression `json:"condition"`
	ExceptionType *TypeRef   `json:"exception_type,omitempty"`
}

// OldCapture names an entry-value capture used by a postcondition.
type OldCapture struct {
	Local string     `json:"local"`
	Value Expression `json:"value"`
}

// Postcondition is a condition the routine establishes on normal return.
type Postcondition struct {
	Condition Expression   `json:"condition"`
	Captures  []OldCapture `json:"captures,omitempty"`
}

// RoutineContract is the behavioral contract of one routine.
//
// It is a mutable aggregate with monoidal merge: preconditions and
// postconditions concatenate in order, purity ORs. The zero value is the
// empty contract and is the merge identity.
type RoutineContract struct {
	Preconditions  []Precondition  `json:"preconditions,omitempty"`
	Postconditions []Postcondition `json:"postconditions,omitempty"`
	IsPure         bool            `json:"is_pure,omitempty"`
}

// IsEmpty reports whether the contract carries no information.
func (rc *RoutineContract) IsEmpty() bool {
	return rc == nil || (len(rc.Preconditions) == 0 && len(rc.Postconditions) == 0 && !rc.IsPure)
}

// Merge appends other's conditions after rc's and ORs purity.
// Merging nil is a no-op. other is not copied; callers that keep other
// alive must pass other.Copy().
func (rc *RoutineContract) Merge(other *RoutineContract) {
	if other == nil {
		return
	}
	rc.Preconditions = append(rc.Preconditions, other.Preconditions...)
	rc.Postconditions = append(rc.Postconditions, other.Postconditions...)
	rc.IsPure = rc.IsPure || other.IsPure
}

// Copy deep-copies the contract. The result shares no expression nodes
// with the source. nil copies to nil.
func (rc *RoutineContract) Copy() *RoutineContract {
	if rc == nil {
		return nil
	}
	c := &RoutineContract{IsPure: rc.IsPure}
	for _, pre := range rc.Preconditions {
		cp := Precondition{Condition: CopyExpr(pre.Condition)}
		if pre.ExceptionType != nil {
			et := *pre.ExceptionType
			cp.ExceptionType = &et
		}
		c.Preconditions = append(c.Preconditions, cp)
	}
	for _, post := range rc.Postconditions {
		cp := Postcondition{Condition: CopyExpr(post.Condition)}
		for _, capture := range post.Captures {
			cp.Captures = append(cp.Captures, OldCapture{Local: capture.Local, Value: CopyExpr(capture.Value)})
		}
		c.Postconditions = append(c.Postconditions, cp)
	}
	return c
}

// Invariant is a condition that holds in every visible state of a type.
type Invariant struct {
	Condition Expression `json:"condition"`
}

// TypeContract is the behavioral contract of one type: invariants plus the
// auxiliary symbols used only inside contract expressions.
//
// Merge semantics mirror RoutineContract: concatenation, never
// replacement. The zero value is the merge identity.
type TypeContract struct {
	Invariants      []Invariant   `json:"invariants,omitempty"`
	ContractFields  []*FieldDef   `json:"contract_fields,omitempty"`
	ContractMethods []*RoutineDef `json:"contract_methods,omitempty"`
}

// IsEmpty reports whether the contract carries no information.
func (tc *TypeContract) IsEmpty() bool {
	return tc == nil || (len(tc.Invariants) == 0 && len(tc.ContractFields) == 0 && len(tc.ContractMethods) == 0)
}

// Merge appends other's invariants and auxiliary symbols after tc's.
// Merging nil is a no-op.
func (tc *TypeContract) Merge(other *TypeContract) {
	if other == nil {
		return
	}
	tc.Invariants = append(tc.Invariants, other.Invariants...)
	tc.ContractFields = append(tc.ContractFields, other.ContractFields...)
	tc.ContractMethods = append(tc.ContractMethods, other.ContractMethods...)
}

// Copy deep-copies the contract. Auxiliary field/method definitions are
// copied shallowly as definitions but with fresh slices; their bodies are
// deep-copied. nil copies to nil.
func (tc *TypeContract) Copy() *TypeContract {
	if tc == nil {
		return nil
	}
	c := &TypeContract{}
	for _, inv := range tc.Invariants {
		c.Invariants = append(c.Invariants, Invariant{Condition: CopyExpr(inv.Condition)})
	}
	for _, fd := range tc.ContractFields {
		f := *fd
		c.ContractFields = append(c.ContractFields, &f)
	}
	for _, md := range tc.ContractMethods {
		m := *md
		m.Body = CopyBody(md.Body)
		m.Params = append([]*ParamDef(nil), md.Params...)
		c.ContractMethods = append(c.ContractMethods, &m)
	}
	return c
}

// LoopContract is the contract of a loop (invariants and variants).
// The extractors in this module never compute one; the type exists so the
// query surface is uniform for collaborators that do.
type LoopContract struct {
	Invariants []Invariant  `json:"invariants,omitempty"`
	Variants   []Expression `json:"variants,omitempty"`
}
