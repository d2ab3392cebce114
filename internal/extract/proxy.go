package extract

import (
	"log/slog"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/rewrite"
)

// ProxyExtractor wraps an underlying extractor and resolves contracts
// for abstract routines, which carry no body of their own, via companion
// proxy classes: concrete types that exist solely to hold the contracts
// of an abstract/interface type's members.
//
// A proxy member's contract is deep-copied and rewritten into the
// abstract routine's context in three passes:
//
//  1. Generic re-mapping: position-wise correspondence between the proxy
//     side's generic parameters (routine and containing type) and the
//     abstract side's.
//  2. Context conversion: the proxy's containing type becomes the
//     abstract containing type; calls targeting proxy members that
//     implicitly implement abstract members are retargeted to the
//     abstract member and marked dynamically dispatched.
//  3. Context relocation: parameter and local references re-home from
//     the proxy routine onto the abstract routine.
//
// Rewritten contracts are cached under the unspecialized base form only;
// instantiated queries re-derive the cheap substitution per request.
type ProxyExtractor struct {
	inner    Provider
	unit     *ir.CompiledUnit
	locator  ProxyLocator
	routines *ContractStore[ir.RoutineKey, ir.RoutineContract]
	types    *ContractStore[ir.TypeKey, ir.TypeContract]
	log      *slog.Logger
}

// ProxyOption configures a ProxyExtractor.
type ProxyOption func(*ProxyExtractor)

// WithProxyLocator overrides the default unit-scan proxy lookup.
func WithProxyLocator(l ProxyLocator) ProxyOption {
	return func(e *ProxyExtractor) { e.locator = l }
}

// WithProxyLogger sets the logger; default is slog.Default.
func WithProxyLogger(l *slog.Logger) ProxyOption {
	return func(e *ProxyExtractor) { e.log = l }
}

// NewProxyExtractor wraps inner (typically a LazyExtractor over the same
// unit) with abstract-routine resolution.
func NewProxyExtractor(unit *ir.CompiledUnit, inner Provider, opts ...ProxyOption) *ProxyExtractor {
	e := &ProxyExtractor{
		inner:    inner,
		unit:     unit,
		locator:  UnitProxyLocator{Unit: unit},
		routines: NewContractStore[ir.RoutineKey, ir.RoutineContract](),
		types:    NewContractStore[ir.TypeKey, ir.TypeContract](),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetRoutineContract implements Provider.
func (e *ProxyExtractor) GetRoutineContract(ref ir.RoutineRef) (*ir.RoutineContract, error) {
	if contract, resolved := e.routines.Get(ref.KeyOf()); resolved {
		return contract, nil
	}

	def, ok := e.unit.ResolveRoutine(ref)
	if !ok {
		e.routines.PutAbsent(ref.KeyOf())
		return nil, nil
	}

	if !def.IsAbstract {
		contract, err := e.inner.GetRoutineContract(ref)
		if err != nil {
			return nil, err
		}
		if contract == nil {
			e.routines.PutAbsent(ref.KeyOf())
		} else {
			e.routines.PutContract(ref.KeyOf(), contract)
		}
		return contract, nil
	}

	base := ref.Unspecialized()
	baseKey := base.KeyOf()
	contract, resolved := e.routines.Get(baseKey)
	if !resolved {
		var err error
		contract, err = e.resolveAbstract(base, def)
		if err != nil {
			return nil, err
		}
	}

	if contract == nil {
		return nil, nil
	}
	if ref.IsInstantiated() {
		// Cheap substitution, recomputed on every request for an
		// instantiation; only the base form is cached.
		return respecialize(contract, def, ref), nil
	}
	return contract, nil
}

// resolveAbstract performs the one-time proxy lookup and rewrite for the
// base form of an abstract routine.
func (e *ProxyExtractor) resolveAbstract(base ir.RoutineRef, def *ir.RoutineDef) (*ir.RoutineContract, error) {
	baseKey := base.KeyOf()

	// Contract found directly on the abstract routine itself (purity
	// markers and the like) merges after the proxy's.
	direct, err := e.inner.GetRoutineContract(base)
	if err != nil {
		return nil, err
	}

	var contract *ir.RoutineContract
	proxy, found := e.locator.FindProxyRoutine(base, def)
	if found {
		proxyContract, err := e.inner.GetRoutineContract(proxy.Ref())
		if err != nil {
			return nil, err
		}
		if proxyContract != nil {
			contract = e.rewriteProxyContract(proxyContract, proxy, base, def)
		}
	}

	if direct != nil {
		if contract == nil {
			contract = &ir.RoutineContract{}
		}
		contract.Merge(direct.Copy())
	}

	e.log.Debug("abstract routine resolved",
		"routine", base.String(), "proxy", found, "contracted", contract != nil)

	if contract == nil {
		e.routines.PutAbsent(baseKey)
	} else {
		e.routines.PutContract(baseKey, contract)
	}
	return contract, nil
}

// rewriteProxyContract runs the three rewrite passes over a deep copy of
// the proxy member's contract.
func (e *ProxyExtractor) rewriteProxyContract(proxyContract *ir.RoutineContract, proxy *ir.RoutineDef, base ir.RoutineRef, def *ir.RoutineDef) *ir.RoutineContract {
	contract := proxyContract.Copy()
	proxyType := proxy.Declaring()
	abstractType := base.DeclaringType.Unspecialized()
	proxyRef := proxy.Ref()

	// Pass 1: generic re-mapping, position-wise on both the routines'
	// and the containing types' parameter lists.
	subst := rewrite.PositionalParamMap(proxy.GenericParams, def.GenericParams)
	if proxyType != nil && def.Declaring() != nil {
		for k, v := range rewrite.PositionalParamMap(proxyType.GenericParams, def.Declaring().GenericParams) {
			subst[k] = v
		}
	}
	if len(subst) > 0 {
		contract = rewrite.RoutineContractOf(contract, rewrite.TypeParamRules(subst))
	}

	// Pass 2: context conversion. Calls to proxy members that implicitly
	// implement abstract members retarget to the abstract member and
	// become dynamically dispatched: the proxy's calls are statically
	// bound, but a contract read against an abstract target must
	// dispatch polymorphically. Remaining proxy type references become
	// the abstract type.
	var abstractDef *ir.TypeDef
	if def.Declaring() != nil {
		abstractDef = def.Declaring()
	}
	proxyTypeRef := ir.TypeRef{Name: ""}
	if proxyType != nil {
		proxyTypeRef = proxyType.Ref()
	}
	contract = rewrite.RoutineContractOf(contract, rewrite.Rules{
		Expr: func(expr ir.Expression) (ir.Expression, bool) {
			call, ok := expr.(*ir.CallExpr)
			if !ok || !call.Target.DeclaringType.Unspecialized().Equal(proxyTypeRef) {
				return nil, false
			}
			if abstractDef == nil {
				return nil, false
			}
			if _, implements := abstractDef.FindRoutine(call.Target); !implements {
				return nil, false
			}
			retargeted := *call
			retargeted.Target.DeclaringType = abstractType
			retargeted.Virtual = true
			return &retargeted, true
		},
	})
	contract = rewrite.RoutineContractOf(contract, rewrite.Rules{
		TypeRef: func(tr ir.TypeRef) ir.TypeRef {
			if tr.Unspecialized().Equal(proxyTypeRef) {
				mapped := abstractType
				mapped.GenericArgs = tr.GenericArgs
				return mapped
			}
			return tr
		},
	})

	// Pass 3: context relocation of parameters and locals.
	var proxyParams, defParams []string
	for _, p := range proxy.Params {
		proxyParams = append(proxyParams, p.Name)
	}
	for _, p := range def.Params {
		defParams = append(defParams, p.Name)
	}
	relocFrom := proxyRef
	relocFrom.DeclaringType = abstractType // pass 2 already moved the declaring type
	return rewrite.RoutineContractOf(contract, rewrite.Chain(
		rewrite.RelocationRules(relocFrom, base, proxyParams, defParams),
		rewrite.RelocationRules(proxyRef, base, proxyParams, defParams),
	))
}

// GetTypeContract implements Provider. Abstract and interface types
// resolve through their proxy class's type contract, rewritten into the
// abstract type's context; concrete types delegate.
func (e *ProxyExtractor) GetTypeContract(ref ir.TypeRef) (*ir.TypeContract, error) {
	if contract, resolved := e.types.Get(ref.KeyOf()); resolved {
		return contract, nil
	}

	td, ok := e.unit.ResolveType(ref)
	if !ok {
		e.types.PutAbsent(ref.KeyOf())
		return nil, nil
	}

	if !td.IsAbstract && !td.IsInterface {
		contract, err := e.inner.GetTypeContract(ref)
		if err != nil {
			return nil, err
		}
		if contract == nil {
			e.types.PutAbsent(ref.KeyOf())
		} else {
			e.types.PutContract(ref.KeyOf(), contract)
		}
		return contract, nil
	}

	base := ref.Unspecialized()
	baseKey := base.KeyOf()
	contract, resolved := e.types.Get(baseKey)
	if !resolved {
		var err error
		contract, err = e.resolveAbstractType(base, td)
		if err != nil {
			return nil, err
		}
	}

	if contract == nil {
		return nil, nil
	}
	if ref.IsInstantiated() {
		return respecializeType(contract, td, ref), nil
	}
	return contract, nil
}

func (e *ProxyExtractor) resolveAbstractType(base ir.TypeRef, td *ir.TypeDef) (*ir.TypeContract, error) {
	baseKey := base.KeyOf()

	direct, err := e.inner.GetTypeContract(base)
	if err != nil {
		return nil, err
	}

	var contract *ir.TypeContract
	if proxyType, ok := e.findProxyType(base); ok {
		proxyContract, err := e.inner.GetTypeContract(proxyType.Ref())
		if err != nil {
			return nil, err
		}
		if proxyContract != nil {
			contract = rewrite.TypeContractOf(proxyContract.Copy(), rewrite.Chain(
				rewrite.TypeParamRules(rewrite.PositionalParamMap(proxyType.GenericParams, td.GenericParams)),
				rewrite.Rules{TypeRef: func(tr ir.TypeRef) ir.TypeRef {
					if tr.Unspecialized().Equal(proxyType.Ref()) {
						mapped := base
						mapped.GenericArgs = tr.GenericArgs
						return mapped
					}
					return tr
				}},
			))
		}
	}

	if direct != nil {
		if contract == nil {
			contract = &ir.TypeContract{}
		}
		contract.Merge(direct.Copy())
	}

	if contract == nil {
		e.types.PutAbsent(baseKey)
	} else {
		e.types.PutContract(baseKey, contract)
	}
	return contract, nil
}

// findProxyType scans the unit for the contract proxy of a type.
func (e *ProxyExtractor) findProxyType(base ir.TypeRef) (*ir.TypeDef, bool) {
	for _, td := range e.unit.Types {
		if td.ProxyFor != nil && td.ProxyFor.Unspecialized().Equal(base) {
			return td, true
		}
	}
	return nil, false
}

// GetLoopContract implements Provider; always nil in this core.
func (e *ProxyExtractor) GetLoopContract(LoopMarker) *ir.LoopContract { return nil }

// GetTriggers implements Provider; always nil in this core.
func (e *ProxyExtractor) GetTriggers(TriggerMarker) [][]ir.Expression { return nil }

// SplitBody implements Provider by delegation.
func (e *ProxyExtractor) SplitBody(body *ir.Body) (*ir.RoutineContract, *ir.Body) {
	return e.inner.SplitBody(body)
}
