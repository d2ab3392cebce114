// Package harness runs extraction scenarios end to end: compile unit
// sources, build an extractor stack, query contracts, and compare the
// outcome against expectations or a golden snapshot.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario covers"
//	units:
//	  - file: path/to/unit.cue
//	  - cue: |
//	      name: "Inline.Unit"
//	      types: ...
//	primary: Parser.Impl
//	contracts: [Parser.Contracts]
//	routines:
//	  - Parser.Parse
//	types:
//	  - Parser
//	expect:
//	  - routine: Parser.Parse
//	    has_contract: true
//	    preconditions: 1
//
// Each unit source is a single CUE unit struct. The primary unit is the
// one symbols are resolved against; it defaults to the first source.
// Units named under contracts become out-of-band contract providers
// aggregated behind the primary.
//
// # Determinism
//
// Extraction is deterministic, so a scenario's outcome serializes to the
// same bytes on every run. Golden snapshots live in testdata/golden and
// are compared with goldie; regenerate them with:
//
//	go test ./internal/harness -update
package harness
