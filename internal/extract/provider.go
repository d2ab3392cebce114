package extract

import (
	"github.com/fhchina/cci/internal/ir"
)

// LoopMarker identifies a loop inside a routine's body for loop-contract
// queries. The extractors in this package never compute loop contracts;
// the marker exists so the query surface stays uniform for collaborators
// that do.
type LoopMarker struct {
	Routine ir.RoutineRef
	Offset  int
}

// TriggerMarker identifies a quantifier for trigger-hint queries.
type TriggerMarker struct {
	Routine ir.RoutineRef
	Label   string
}

// Provider is the uniform query surface of every extractor.
//
// Callers only ever see nil (absence) or a genuine contract; the
// internal distinctions (sentinel, unresolved, cyclic) stay inside the
// stores. Errors are reserved for decompilation failures, which
// propagate unmodified and uncached.
type Provider interface {
	// GetRoutineContract returns the routine's contract, or nil when the
	// reference does not resolve or resolves to an uncontracted routine.
	GetRoutineContract(ref ir.RoutineRef) (*ir.RoutineContract, error)

	// GetTypeContract returns the type's contract, or nil.
	GetTypeContract(ref ir.TypeRef) (*ir.TypeContract, error)

	// GetLoopContract always returns nil in this core.
	GetLoopContract(m LoopMarker) *ir.LoopContract

	// GetTriggers always returns nil in this core.
	GetTriggers(m TriggerMarker) [][]ir.Expression

	// SplitBody splits a tree body into its contract prefix and residual
	// executable code. Total: the contract part may be nil, the residual
	// body is always returned.
	SplitBody(body *ir.Body) (*ir.RoutineContract, *ir.Body)
}

// ResidualListener consumes contract-free bodies after splitting, e.g. a
// decompiler pipeline continuing past contract code.
//
// Listeners are invoked synchronously, in registration order, on the
// same goroutine as the triggering query. A listener must not re-enter
// the same extractor for the same symbol.
type ResidualListener interface {
	OnResidualBody(def *ir.RoutineDef, body *ir.Body)
}
