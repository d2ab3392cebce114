package harness

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/fhchina/cci/internal/compiler"
	"github.com/fhchina/cci/internal/extract"
	"github.com/fhchina/cci/internal/ir"
)

// Result is the outcome of running a scenario: one entry per queried
// symbol, in query order. Outcomes serialize deterministically, so a
// result is suitable for golden comparison.
type Result struct {
	Scenario string           `json:"scenario"`
	Routines []RoutineOutcome `json:"routines,omitempty"`
	Types    []TypeOutcome    `json:"types,omitempty"`
}

// RoutineOutcome is the extracted contract of one routine, with the
// conditions rendered to stable text.
type RoutineOutcome struct {
	Ref      string   `json:"ref"`
	Absent   bool     `json:"absent,omitempty"`
	Pure     bool     `json:"pure,omitempty"`
	Requires []string `json:"requires,omitempty"`
	Ensures  []string `json:"ensures,omitempty"`

	// spec is the scenario's query spec, kept for lookup by Routine.
	spec string
}

// TypeOutcome is the extracted contract of one type.
type TypeOutcome struct {
	Ref        string   `json:"ref"`
	Absent     bool     `json:"absent,omitempty"`
	Invariants []string `json:"invariants,omitempty"`

	spec string
}

// Routine returns the outcome for a routine by its "Type.Routine" spec.
func (r *Result) Routine(spec string) (RoutineOutcome, bool) {
	for _, o := range r.Routines {
		if o.spec == spec {
			return o, true
		}
	}
	return RoutineOutcome{}, false
}

// Type returns the outcome for a type by name.
func (r *Result) Type(name string) (TypeOutcome, bool) {
	for _, o := range r.Types {
		if o.spec == name {
			return o, true
		}
	}
	return TypeOutcome{}, false
}

// Run compiles the scenario's unit sources and executes it.
func Run(scenario *Scenario) (*Result, error) {
	ctx := cuecontext.New()

	units := make([]*ir.CompiledUnit, 0, len(scenario.Units))
	for i, src := range scenario.Units {
		source := src.CUE
		if src.File != "" {
			data, err := os.ReadFile(src.File)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: units[%d]: %w", scenario.Name, i, err)
			}
			source = string(data)
		}

		v := ctx.CompileString(source)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s: units[%d]: %w", scenario.Name, i, err)
		}
		unit, err := compiler.CompileUnit(v)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: units[%d]: %w", scenario.Name, i, err)
		}
		units = append(units, unit)
	}

	return RunUnits(scenario, units)
}

// RunUnits executes a scenario against already-compiled units, in the
// same order as the scenario's sources. Used by tests that build units
// programmatically.
func RunUnits(scenario *Scenario, units []*ir.CompiledUnit) (*Result, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("scenario %s: no units", scenario.Name)
	}

	primary := units[0]
	if scenario.Primary != "" {
		p, ok := unitByName(units, scenario.Primary)
		if !ok {
			return nil, fmt.Errorf("scenario %s: primary unit %q not among sources", scenario.Name, scenario.Primary)
		}
		primary = p
	}

	provider, release, err := buildStack(scenario, primary, units)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &Result{Scenario: scenario.Name}
	for _, spec := range scenario.Routines {
		outcome, err := queryRoutine(provider, primary, spec)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Routines = append(result.Routines, outcome)
	}
	for _, name := range scenario.Types {
		outcome, err := queryType(provider, primary, name)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Types = append(result.Types, outcome)
	}
	return result, nil
}

// buildStack assembles the extractor stack: a proxy-aware extractor over
// each unit's lazy extractor, with contract units aggregated behind the
// primary in listed order. The release func closes every opened
// extractor; callers run it when the scenario finishes.
func buildStack(scenario *Scenario, primary *ir.CompiledUnit, units []*ir.CompiledUnit) (extract.Provider, func() error, error) {
	var lazies []*extract.LazyExtractor
	release := func() error {
		var first error
		for _, l := range lazies {
			if err := l.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	providerFor := func(unit *ir.CompiledUnit) (extract.Provider, error) {
		lazy, err := extract.NewLazyExtractor(unit, extract.WithDebugTable(nil))
		if err != nil {
			return nil, fmt.Errorf("scenario %s: unit %s: %w", scenario.Name, unit.Identity, err)
		}
		lazies = append(lazies, lazy)
		return extract.NewProxyExtractor(unit, lazy), nil
	}

	provider, err := providerFor(primary)
	if err != nil {
		return nil, nil, err
	}
	if len(scenario.Contracts) == 0 {
		return provider, release, nil
	}

	opts := []extract.AggregateOption{}
	for _, name := range scenario.Contracts {
		secUnit, ok := unitByName(units, name)
		if !ok {
			_ = release()
			return nil, nil, fmt.Errorf("scenario %s: contract unit %q not among sources", scenario.Name, name)
		}
		sec, err := providerFor(secUnit)
		if err != nil {
			_ = release()
			return nil, nil, err
		}
		opts = append(opts, extract.WithSecondary(extract.SecondaryProvider{
			Provider: sec,
			Unit:     secUnit,
		}))
	}
	return extract.NewAggregateExtractor(primary, provider, opts...), release, nil
}

func unitByName(units []*ir.CompiledUnit, name string) (*ir.CompiledUnit, bool) {
	for _, u := range units {
		if u.Identity.Name == name {
			return u, true
		}
	}
	return nil, false
}

func queryRoutine(provider extract.Provider, unit *ir.CompiledUnit, spec string) (RoutineOutcome, error) {
	typeName, routineName, _ := strings.Cut(spec, ".")
	rd, ok := findRoutine(unit, typeName, routineName)
	if !ok {
		return RoutineOutcome{}, fmt.Errorf("routine %q not found in unit %s", spec, unit.Identity)
	}

	contract, err := provider.GetRoutineContract(rd.Ref())
	if err != nil {
		return RoutineOutcome{}, err
	}

	outcome := RoutineOutcome{Ref: rd.Ref().String(), spec: spec}
	if contract == nil {
		outcome.Absent = true
		return outcome, nil
	}
	outcome.Pure = contract.IsPure
	for _, pre := range contract.Preconditions {
		outcome.Requires = append(outcome.Requires, renderExpr(pre.Condition))
	}
	for _, post := range contract.Postconditions {
		outcome.Ensures = append(outcome.Ensures, renderExpr(post.Condition))
	}
	return outcome, nil
}

func queryType(provider extract.Provider, unit *ir.CompiledUnit, name string) (TypeOutcome, error) {
	td, ok := unit.ResolveType(unit.TypeRefTo(name))
	if !ok {
		return TypeOutcome{}, fmt.Errorf("type %q not found in unit %s", name, unit.Identity)
	}

	contract, err := provider.GetTypeContract(td.Ref())
	if err != nil {
		return TypeOutcome{}, err
	}

	outcome := TypeOutcome{Ref: td.Ref().String(), spec: name}
	if contract == nil {
		outcome.Absent = true
		return outcome, nil
	}
	for _, inv := range contract.Invariants {
		outcome.Invariants = append(outcome.Invariants, renderExpr(inv.Condition))
	}
	return outcome, nil
}

func findRoutine(unit *ir.CompiledUnit, typeName, routineName string) (*ir.RoutineDef, bool) {
	for _, td := range unit.Types {
		if td.Name != typeName {
			continue
		}
		for _, rd := range td.Routines {
			if rd.Name == routineName {
				return rd, true
			}
		}
	}
	return nil, false
}

// Check validates the scenario's expectations against a result,
// returning one message per failed expectation.
func (s *Scenario) Check(result *Result) []string {
	var failures []string
	for _, e := range s.Expect {
		if e.Routine != "" {
			failures = append(failures, checkRoutine(e, result)...)
		} else {
			failures = append(failures, checkType(e, result)...)
		}
	}
	return failures
}

func checkRoutine(e Expectation, result *Result) []string {
	o, ok := result.Routine(e.Routine)
	if !ok {
		return []string{fmt.Sprintf("routine %s: no outcome recorded", e.Routine)}
	}

	var failures []string
	if got := !o.Absent; got != e.HasContract {
		failures = append(failures, fmt.Sprintf("routine %s: has_contract = %t, want %t", e.Routine, got, e.HasContract))
	}
	if e.Preconditions != nil && len(o.Requires) != *e.Preconditions {
		failures = append(failures, fmt.Sprintf("routine %s: %d precondition(s), want %d", e.Routine, len(o.Requires), *e.Preconditions))
	}
	if e.Postconditions != nil && len(o.Ensures) != *e.Postconditions {
		failures = append(failures, fmt.Sprintf("routine %s: %d postcondition(s), want %d", e.Routine, len(o.Ensures), *e.Postconditions))
	}
	return failures
}

func checkType(e Expectation, result *Result) []string {
	o, ok := result.Type(e.Type)
	if !ok {
		return []string{fmt.Sprintf("type %s: no outcome recorded", e.Type)}
	}

	var failures []string
	if got := !o.Absent; got != e.HasContract {
		failures = append(failures, fmt.Sprintf("type %s: has_contract = %t, want %t", e.Type, got, e.HasContract))
	}
	if e.Invariants != nil && len(o.Invariants) != *e.Invariants {
		failures = append(failures, fmt.Sprintf("type %s: %d invariant(s), want %d", e.Type, len(o.Invariants), *e.Invariants))
	}
	return failures
}
