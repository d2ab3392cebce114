package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes one extraction run: which units to compile, which
// extractor stack to build over them, and which symbols to query.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description,omitempty"`

	// Units lists the unit sources to compile, each a single CUE unit
	// struct, inline or in a file.
	Units []UnitSource `yaml:"units"`

	// Primary names the unit symbols are resolved against. Defaults to
	// the first source's unit.
	Primary string `yaml:"primary,omitempty"`

	// Contracts names units that act as out-of-band contract providers,
	// aggregated behind the primary in listed order.
	Contracts []string `yaml:"contracts,omitempty"`

	// Routines lists routine specs to query, each "Type.Routine" within
	// the primary unit.
	Routines []string `yaml:"routines,omitempty"`

	// Types lists type names to query within the primary unit.
	Types []string `yaml:"types,omitempty"`

	// Expect holds outcome expectations checked by Check. Optional;
	// scenarios may rely on golden comparison alone.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// UnitSource is one unit's CUE source, exactly one of File or CUE.
type UnitSource struct {
	// File is a CUE file path, resolved relative to the scenario file.
	File string `yaml:"file,omitempty"`

	// CUE is inline CUE source.
	CUE string `yaml:"cue,omitempty"`
}

// Expectation is a declarative check on one queried symbol's outcome.
// Exactly one of Routine or Type names the symbol, which must also
// appear in the scenario's query lists.
type Expectation struct {
	Routine string `yaml:"routine,omitempty"`
	Type    string `yaml:"type,omitempty"`

	// HasContract is the expected presence: true for a contract, false
	// for a recorded absence.
	HasContract bool `yaml:"has_contract"`

	// Counts are checked only when set.
	Preconditions  *int `yaml:"preconditions,omitempty"`
	Postconditions *int `yaml:"postconditions,omitempty"`
	Invariants     *int `yaml:"invariants,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unit file paths
// are resolved relative to the scenario's directory. Returns an error
// for malformed YAML, unknown fields, or missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	base := filepath.Dir(path)
	for i, src := range scenario.Units {
		if src.File != "" && !filepath.IsAbs(src.File) {
			scenario.Units[i].File = filepath.Join(base, src.File)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Units) == 0 {
		return fmt.Errorf("units list is required and must be non-empty")
	}
	for i, src := range s.Units {
		if (src.File == "") == (src.CUE == "") {
			return fmt.Errorf("units[%d]: exactly one of file or cue is required", i)
		}
		if src.File != "" {
			if _, err := os.Stat(src.File); err != nil {
				return fmt.Errorf("units[%d]: %w", i, err)
			}
		}
	}
	if len(s.Routines) == 0 && len(s.Types) == 0 {
		return fmt.Errorf("at least one routine or type to query is required")
	}
	for i, spec := range s.Routines {
		if !strings.Contains(spec, ".") {
			return fmt.Errorf("routines[%d]: %q is not a Type.Routine spec", i, spec)
		}
	}
	for i, e := range s.Expect {
		if (e.Routine == "") == (e.Type == "") {
			return fmt.Errorf("expect[%d]: exactly one of routine or type is required", i)
		}
		if e.Routine != "" && !slices.Contains(s.Routines, e.Routine) {
			return fmt.Errorf("expect[%d]: routine %q is not queried by this scenario", i, e.Routine)
		}
		if e.Type != "" && !slices.Contains(s.Types, e.Type) {
			return fmt.Errorf("expect[%d]: type %q is not queried by this scenario", i, e.Type)
		}
	}
	return nil
}
