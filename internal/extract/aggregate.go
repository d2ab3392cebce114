package extract

import (
	"log/slog"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/rewrite"
)

// CrossUnitMapping is the derived, bidirectional symbol rewrite between
// the primary unit and one secondary unit. Generated once at aggregator
// construction; stateless thereafter - a pure function of the two units'
// reference graphs.
//
// Mapping is purely identity substitution, not name-based resolution: it
// assumes the secondary unit exposes a structurally equivalent symbol
// graph (same namespaces, names, signatures) for the portions that
// matter to contracts. A symbol maps only when its image actually
// resolves in the secondary unit; otherwise the mapping fails and the
// aggregator skips that provider.
type CrossUnitMapping struct {
	primary   *ir.CompiledUnit
	secondary *ir.CompiledUnit
}

// NewCrossUnitMapping builds the mapping between a primary unit and one
// secondary unit.
func NewCrossUnitMapping(primary, secondary *ir.CompiledUnit) CrossUnitMapping {
	return CrossUnitMapping{primary: primary, secondary: secondary}
}

// RoutineToSecondary maps a primary-unit routine reference into the
// secondary unit. Fails when the secondary has no equivalent symbol.
func (m CrossUnitMapping) RoutineToSecondary(ref ir.RoutineRef) (ir.RoutineRef, bool) {
	mapped := rewrite.MapRoutineRef(ref, m.primary.Identity, m.secondary.Identity)
	if _, ok := m.secondary.ResolveRoutine(mapped.Unspecialized()); !ok {
		return ir.RoutineRef{}, false
	}
	return mapped, true
}

// TypeToSecondary maps a primary-unit type reference into the secondary
// unit. Fails when the secondary has no equivalent symbol.
func (m CrossUnitMapping) TypeToSecondary(ref ir.TypeRef) (ir.TypeRef, bool) {
	mapped := rewrite.MapTypeRef(ref, m.primary.Identity, m.secondary.Identity)
	if _, ok := m.secondary.ResolveType(mapped.Unspecialized()); !ok {
		return ir.TypeRef{}, false
	}
	return mapped, true
}

// ToPrimaryRules returns the rewrite rules mapping secondary-unit
// identities back into the primary unit.
func (m CrossUnitMapping) ToPrimaryRules() rewrite.Rules {
	return rewrite.UnitRules(m.secondary.Identity, m.primary.Identity)
}

// SecondaryProvider pairs an out-of-band contract provider with the unit
// it answers for.
type SecondaryProvider struct {
	Provider Provider
	Unit     *ir.CompiledUnit
}

type boundSecondary struct {
	provider Provider
	unit     *ir.CompiledUnit
	mapping  CrossUnitMapping
}

// AggregateExtractor composes a primary extractor with zero or more
// secondary providers - independently compiled units (typically
// contract-only side channels) that describe the same logical symbols.
// Every returned contract is expressed in the primary unit's symbol
// identities.
//
// A per-call-stack cycle guard breaks mutual recursion through chains of
// routines that reference each other inside their own contracts: a
// re-entrant query for a symbol already being resolved returns nil, and
// the outer computation completes and caches normally. The coarsening is
// intentional - a contract that depends on itself degrades to its
// non-self-referential subset. The guard suppresses re-entry only; it
// does not memoize in-progress results, so independent cyclic chains may
// re-derive shared non-cyclic work.
//
// The guard is state owned by this instance: a single logical thread of
// control per aggregator.
type AggregateExtractor struct {
	primary     Provider
	primaryUnit *ir.CompiledUnit
	secondaries []boundSecondary

	routines *ContractStore[ir.RoutineKey, ir.RoutineContract]
	types    *ContractStore[ir.TypeKey, ir.TypeContract]

	// In-flight symbol sets, scoped to the current call stack.
	resolvingRoutines map[ir.RoutineKey]bool
	resolvingTypes    map[ir.TypeKey]bool

	log *slog.Logger
}

// AggregateOption configures an AggregateExtractor.
type AggregateOption func(*AggregateExtractor)

// WithSecondary adds an out-of-band provider; its cross-unit mapping is
// precomputed here, at construction.
func WithSecondary(sp SecondaryProvider) AggregateOption {
	return func(e *AggregateExtractor) {
		e.secondaries = append(e.secondaries, boundSecondary{
			provider: sp.Provider,
			unit:     sp.Unit,
			mapping:  NewCrossUnitMapping(e.primaryUnit, sp.Unit),
		})
	}
}

// WithAggregateLogger sets the logger; default is slog.Default.
func WithAggregateLogger(l *slog.Logger) AggregateOption {
	return func(e *AggregateExtractor) { e.log = l }
}

// NewAggregateExtractor composes primary with the configured
// secondaries. primary may be nil when secondaries fully substitute for
// it (a pure contract-reference configuration); the primary unit is
// still required, because it defines the identity space of all results.
func NewAggregateExtractor(primaryUnit *ir.CompiledUnit, primary Provider, opts ...AggregateOption) *AggregateExtractor {
	e := &AggregateExtractor{
		primary:           primary,
		primaryUnit:       primaryUnit,
		routines:          NewContractStore[ir.RoutineKey, ir.RoutineContract](),
		types:             NewContractStore[ir.TypeKey, ir.TypeContract](),
		resolvingRoutines: make(map[ir.RoutineKey]bool),
		resolvingTypes:    make(map[ir.TypeKey]bool),
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetRoutineContract implements Provider.
func (e *AggregateExtractor) GetRoutineContract(ref ir.RoutineRef) (*ir.RoutineContract, error) {
	key := ref.KeyOf()

	// Cycle guard: a re-entrant query resolves to "no contract" and the
	// outer computation proceeds without it.
	if e.resolvingRoutines[key] {
		e.log.Debug("cyclic routine query broken", "routine", ref.String())
		return nil, nil
	}

	if contract, resolved := e.routines.Get(key); resolved {
		return contract, nil
	}

	e.resolvingRoutines[key] = true
	defer delete(e.resolvingRoutines, key)

	if len(e.secondaries) == 0 {
		contract, err := e.queryPrimaryRoutine(ref)
		if err != nil {
			return nil, err
		}
		e.putRoutine(key, contract)
		return contract, nil
	}

	acc := &ir.RoutineContract{}

	primary, err := e.queryPrimaryRoutine(ref)
	if err != nil {
		return nil, err
	}
	acc.Merge(primary.Copy())

	for _, sec := range e.secondaries {
		mapped, ok := sec.mapping.RoutineToSecondary(ref)
		if !ok {
			// No equivalent symbol in this provider's unit; aggregation
			// proceeds with whatever providers do match.
			continue
		}
		found, err := sec.provider.GetRoutineContract(mapped)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		acc.Merge(e.mapRoutineContractBack(found, ref, mapped, sec))
	}

	if acc.IsEmpty() {
		e.putRoutine(key, nil)
		return nil, nil
	}
	e.putRoutine(key, acc)
	return acc, nil
}

// mapRoutineContractBack expresses a secondary unit's finding in the
// primary unit's identity space: unit identities map back, then the
// secondary routine's formal parameters are substituted for the primary
// routine's - contracts are written against the secondary's own
// parameter symbols and must read against the primary's.
func (e *AggregateExtractor) mapRoutineContractBack(found *ir.RoutineContract, ref, mapped ir.RoutineRef, sec boundSecondary) *ir.RoutineContract {
	// Identity mapping first; parameter references then read against the
	// primary routine's formals, matched by position.
	repl := map[string]ir.Expression{}
	secDef, okSec := sec.unit.ResolveRoutine(mapped.Unspecialized())
	priDef, okPri := e.primaryUnit.ResolveRoutine(ref.Unspecialized())
	if okSec && okPri {
		priRefs := priDef.ParamRefs()
		for i, p := range secDef.Params {
			if i < len(priRefs) {
				repl[p.Name] = priRefs[i]
			}
		}
	}
	return rewrite.RoutineContractOf(found, rewrite.Chain(
		sec.mapping.ToPrimaryRules(),
		rewrite.ParamSubstitutionRules(ref, repl),
	))
}

func (e *AggregateExtractor) queryPrimaryRoutine(ref ir.RoutineRef) (*ir.RoutineContract, error) {
	if e.primary == nil {
		return nil, nil
	}
	return e.primary.GetRoutineContract(ref)
}

func (e *AggregateExtractor) putRoutine(key ir.RoutineKey, contract *ir.RoutineContract) {
	if contract == nil {
		e.routines.PutAbsent(key)
		return
	}
	e.routines.PutContract(key, contract)
}

// GetTypeContract implements Provider. The algorithm mirrors routine
// aggregation with merging over invariants; types have no parameters to
// substitute, but auxiliary contract-only fields and methods re-parent
// onto the primary type through the identity mapping.
func (e *AggregateExtractor) GetTypeContract(ref ir.TypeRef) (*ir.TypeContract, error) {
	key := ref.KeyOf()

	if e.resolvingTypes[key] {
		e.log.Debug("cyclic type query broken", "type", ref.String())
		return nil, nil
	}

	if contract, resolved := e.types.Get(key); resolved {
		return contract, nil
	}

	e.resolvingTypes[key] = true
	defer delete(e.resolvingTypes, key)

	if len(e.secondaries) == 0 {
		contract, err := e.queryPrimaryType(ref)
		if err != nil {
			return nil, err
		}
		e.putType(key, contract)
		return contract, nil
	}

	acc := &ir.TypeContract{}

	primary, err := e.queryPrimaryType(ref)
	if err != nil {
		return nil, err
	}
	acc.Merge(primary.Copy())

	for _, sec := range e.secondaries {
		mapped, ok := sec.mapping.TypeToSecondary(ref)
		if !ok {
			continue
		}
		found, err := sec.provider.GetTypeContract(mapped)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		acc.Merge(rewrite.TypeContractOf(found, sec.mapping.ToPrimaryRules()))
	}

	if acc.IsEmpty() {
		e.putType(key, nil)
		return nil, nil
	}
	e.putType(key, acc)
	return acc, nil
}

func (e *AggregateExtractor) queryPrimaryType(ref ir.TypeRef) (*ir.TypeContract, error) {
	if e.primary == nil {
		return nil, nil
	}
	return e.primary.GetTypeContract(ref)
}

func (e *AggregateExtractor) putType(key ir.TypeKey, contract *ir.TypeContract) {
	if contract == nil {
		e.types.PutAbsent(key)
		return
	}
	e.types.PutContract(key, contract)
}

// GetLoopContract implements Provider; always nil in this core.
func (e *AggregateExtractor) GetLoopContract(LoopMarker) *ir.LoopContract { return nil }

// GetTriggers implements Provider; always nil in this core.
func (e *AggregateExtractor) GetTriggers(TriggerMarker) [][]ir.Expression { return nil }

// SplitBody implements Provider by delegation to the primary extractor.
// With no primary, splitting falls back to the standard splitter.
func (e *AggregateExtractor) SplitBody(body *ir.Body) (*ir.RoutineContract, *ir.Body) {
	if e.primary != nil {
		return e.primary.SplitBody(body)
	}
	return StandardSplitter{}.Split(body)
}
