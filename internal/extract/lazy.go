package extract

import (
	"log/slog"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/rewrite"
)

// InvariantMethodName is the routine recognized as a type's invariant
// method: its body is a run of Contract.Invariant calls.
const InvariantMethodName = "ObjectInvariant"

// LazyExtractor extracts contracts from one compiled unit, decompiling a
// routine's body on first request and splitting it into a contract
// section and residual code.
//
// The split is a one-time, non-reentrant operation per routine: the
// store records either the found contract or the sentinel, so the
// decompiler and splitter run at most once per symbol. Decompilation
// failures are the exception - they propagate and are not cached.
//
// The extractor owns an optional debug-symbol table opened from the
// unit's location; Close releases it.
type LazyExtractor struct {
	unit      *ir.CompiledUnit
	dec       Decompiler
	splitter  Splitter
	purity    PurityLookup
	miner     InvariantMiner
	debug     DebugTable
	debugSet  bool
	routines  *ContractStore[ir.RoutineKey, ir.RoutineContract]
	types     *ContractStore[ir.TypeKey, ir.TypeContract]
	listeners []ResidualListener
	log       *slog.Logger
}

// LazyOption configures a LazyExtractor.
type LazyOption func(*LazyExtractor)

// WithDecompiler overrides the default tree-form decompiler.
func WithDecompiler(d Decompiler) LazyOption {
	return func(e *LazyExtractor) { e.dec = d }
}

// WithSplitter overrides the default contract-section splitter.
func WithSplitter(s Splitter) LazyOption {
	return func(e *LazyExtractor) { e.splitter = s }
}

// WithPurityLookup overrides the default attribute-based purity lookup.
func WithPurityLookup(p PurityLookup) LazyOption {
	return func(e *LazyExtractor) { e.purity = p }
}

// WithInvariantMiner overrides the default accessor invariant miner.
func WithInvariantMiner(m InvariantMiner) LazyOption {
	return func(e *LazyExtractor) { e.miner = m }
}

// WithDebugTable supplies an already-open debug table instead of the
// sidecar derived from the unit's location. Pass nil to disable the
// sidecar lookup entirely.
func WithDebugTable(t DebugTable) LazyOption {
	return func(e *LazyExtractor) {
		e.debug = t
		e.debugSet = true
	}
}

// WithLazyLogger sets the logger; default is slog.Default.
func WithLazyLogger(l *slog.Logger) LazyOption {
	return func(e *LazyExtractor) { e.log = l }
}

// NewLazyExtractor creates an extractor over one compiled unit.
//
// Unless WithDebugTable is given, the debug-symbol sidecar is opened
// from the unit's location on construction; a missing sidecar is fine, a
// malformed one is an error.
func NewLazyExtractor(unit *ir.CompiledUnit, opts ...LazyOption) (*LazyExtractor, error) {
	e := &LazyExtractor{
		unit:     unit,
		dec:      TreeDecompiler{},
		splitter: StandardSplitter{},
		purity:   AttributePurity{},
		miner:    AccessorMiner{},
		routines: NewContractStore[ir.RoutineKey, ir.RoutineContract](),
		types:    NewContractStore[ir.TypeKey, ir.TypeContract](),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.debugSet {
		tbl, err := OpenDebugTable(unit.Location)
		if err != nil {
			return nil, err
		}
		e.debug = tbl
	}
	return e, nil
}

// Close releases the debug table. Safe to call more than once.
func (e *LazyExtractor) Close() error {
	if e.debug == nil {
		return nil
	}
	err := e.debug.Close()
	e.debug = nil
	return err
}

// Register adds a listener for residual bodies. Listeners are notified
// synchronously, in registration order, once per successfully split
// routine.
func (e *LazyExtractor) Register(l ResidualListener) {
	e.listeners = append(e.listeners, l)
}

// GetRoutineContract implements Provider.
func (e *LazyExtractor) GetRoutineContract(ref ir.RoutineRef) (*ir.RoutineContract, error) {
	base := ref.Unspecialized()
	key := base.KeyOf()

	contract, resolved := e.routines.Get(key)
	if !resolved {
		var err error
		contract, err = e.resolveRoutine(base)
		if err != nil {
			return nil, err
		}
	}
	if contract == nil {
		return nil, nil
	}
	if ref.IsInstantiated() {
		def, _ := e.unit.ResolveRoutine(base)
		return respecialize(contract, def, ref), nil
	}
	return contract, nil
}

// resolveRoutine performs the one-time extraction for an unspecialized
// reference and records the outcome in the store.
func (e *LazyExtractor) resolveRoutine(base ir.RoutineRef) (*ir.RoutineContract, error) {
	key := base.KeyOf()

	def, ok := e.unit.ResolveRoutine(base)
	if !ok {
		e.routines.PutAbsent(key)
		return nil, nil
	}

	if !def.HasBody() {
		if e.purity.IsPure(def) {
			contract := &ir.RoutineContract{IsPure: true}
			e.routines.PutContract(key, contract)
			return contract, nil
		}
		e.routines.PutAbsent(key)
		return nil, nil
	}

	body, err := e.dec.Decompile(def, e.debug)
	if err != nil {
		// Not cached: a later retry with different collaborator state
		// may succeed.
		return nil, err
	}

	contract, residual := e.splitter.Split(body)

	if def.IsAccessor {
		mined, err := e.mineAccessorContract(def)
		if err != nil {
			return nil, err
		}
		if mined != nil {
			if contract == nil {
				contract = &ir.RoutineContract{}
			}
			contract.Merge(mined)
		}
	}

	if contract == nil {
		e.routines.PutAbsent(key)
	} else {
		e.routines.PutContract(key, contract)
	}

	e.log.Debug("routine split", "routine", base.String(), "contracted", contract != nil)
	for _, l := range e.listeners {
		l.OnResidualBody(def, residual)
	}
	return contract, nil
}

// mineAccessorContract derives the implicit contract of a synthesized
// property accessor from the enclosing type's invariants.
func (e *LazyExtractor) mineAccessorContract(def *ir.RoutineDef) (*ir.RoutineContract, error) {
	declaring := def.Declaring()
	if declaring == nil {
		return nil, nil
	}
	tc, err := e.GetTypeContract(declaring.Ref())
	if err != nil || tc == nil {
		return nil, err
	}
	return e.miner.MineFromInvariants(tc, def), nil
}

// GetTypeContract implements Provider. The type's contract is the merge
// of invariants carried directly on the definition and invariants split
// from its invariant method, plus auxiliary contract-only symbols.
func (e *LazyExtractor) GetTypeContract(ref ir.TypeRef) (*ir.TypeContract, error) {
	base := ref.Unspecialized()
	key := base.KeyOf()

	contract, resolved := e.types.Get(key)
	if !resolved {
		var err error
		contract, err = e.resolveType(base)
		if err != nil {
			return nil, err
		}
	}
	if contract == nil {
		return nil, nil
	}
	if ref.IsInstantiated() {
		td, _ := e.unit.ResolveType(base)
		return respecializeType(contract, td, ref), nil
	}
	return contract, nil
}

func (e *LazyExtractor) resolveType(base ir.TypeRef) (*ir.TypeContract, error) {
	key := base.KeyOf()

	td, ok := e.unit.ResolveType(base)
	if !ok {
		e.types.PutAbsent(key)
		return nil, nil
	}

	contract := &ir.TypeContract{}
	contract.Merge(td.Invariants.Copy())

	for _, fd := range td.Fields {
		if fd.ContractOnly {
			f := *fd
			contract.ContractFields = append(contract.ContractFields, &f)
		}
	}

	if inv, ok := e.invariantMethod(td); ok {
		body, err := e.dec.Decompile(inv, e.debug)
		if err != nil {
			return nil, err
		}
		mined, residual := e.splitter.SplitInvariants(body)
		contract.Merge(mined)
		for _, l := range e.listeners {
			l.OnResidualBody(inv, residual)
		}
	}

	if contract.IsEmpty() {
		e.types.PutAbsent(key)
		return nil, nil
	}
	e.types.PutContract(key, contract)
	return contract, nil
}

// invariantMethod finds the type's invariant method, if any.
func (e *LazyExtractor) invariantMethod(td *ir.TypeDef) (*ir.RoutineDef, bool) {
	for _, rd := range td.Routines {
		if rd.Name == InvariantMethodName && rd.HasBody() {
			return rd, true
		}
	}
	return nil, false
}

// GetLoopContract implements Provider; always nil in this core.
func (e *LazyExtractor) GetLoopContract(LoopMarker) *ir.LoopContract { return nil }

// GetTriggers implements Provider; always nil in this core.
func (e *LazyExtractor) GetTriggers(TriggerMarker) [][]ir.Expression { return nil }

// SplitBody implements Provider.
func (e *LazyExtractor) SplitBody(body *ir.Body) (*ir.RoutineContract, *ir.Body) {
	return e.splitter.Split(body)
}

// respecialize rebinds a cached base contract into an instantiation's
// calling context: the definition's generic parameters (and its
// declaring type's) are substituted with the reference's actual type
// arguments, and parameter/local references are re-homed onto the
// instantiated reference. The result is always a fresh tree; the cached
// base contract is never touched and instantiation results are never
// cached - this substitution is cheap and recomputed per request.
func respecialize(contract *ir.RoutineContract, def *ir.RoutineDef, ref ir.RoutineRef) *ir.RoutineContract {
	if contract == nil {
		return nil
	}
	subst := map[string]ir.TypeRef{}
	if def != nil {
		for k, v := range rewrite.InstantiationMap(def.GenericParams, ref.GenericArgs) {
			subst[k] = v
		}
		if declaring := def.Declaring(); declaring != nil {
			for k, v := range rewrite.InstantiationMap(declaring.GenericParams, ref.DeclaringType.GenericArgs) {
				subst[k] = v
			}
		}
	}

	base := ref.Unspecialized()
	var names []string
	if def != nil {
		for _, p := range def.Params {
			names = append(names, p.Name)
		}
	}
	rules := rewrite.Chain(
		rewrite.TypeParamRules(subst),
		rewrite.RelocationRules(base, ref, names, names),
	)
	return rewrite.RoutineContractOf(contract, rules)
}

// respecializeType rebinds a cached base type contract into an
// instantiation's context.
func respecializeType(contract *ir.TypeContract, td *ir.TypeDef, ref ir.TypeRef) *ir.TypeContract {
	if contract == nil {
		return nil
	}
	var subst map[string]ir.TypeRef
	if td != nil {
		subst = rewrite.InstantiationMap(td.GenericParams, ref.GenericArgs)
	}
	return rewrite.TypeContractOf(contract, rewrite.TypeParamRules(subst))
}
