package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DebugTableExt is the fixed extension substituted onto a unit's
// location to find its debug-symbol sidecar.
const DebugTableExt = ".sym"

// SourcePosition is a source location recorded for a routine.
type SourcePosition struct {
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

// DebugTable provides source positions for routines of one unit.
//
// The table is optional: its absence only disables position-assisted
// splitting. The extractor that owns a table must release it
// deterministically via Close when discarded.
type DebugTable interface {
	// Position returns the recorded source position of a routine, by
	// name, if any.
	Position(routine string) (SourcePosition, bool)

	// Close releases the table. Safe to call more than once.
	Close() error
}

// OpenDebugTable opens the debug-symbol sidecar for a unit location:
// the location's extension replaced with DebugTableExt.
//
// A missing sidecar is not an error; it returns (nil, nil). A sidecar
// that exists but does not parse is an error.
func OpenDebugTable(location string) (DebugTable, error) {
	if location == "" {
		return nil, nil
	}
	path := strings.TrimSuffix(location, filepath.Ext(location)) + DebugTableExt

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open debug table %s: %w", path, err)
	}

	var positions map[string]SourcePosition
	if err := yaml.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("parse debug table %s: %w", path, err)
	}

	return &sidecarTable{path: path, positions: positions}, nil
}

type sidecarTable struct {
	path      string
	positions map[string]SourcePosition
	closed    bool
}

func (t *sidecarTable) Position(routine string) (SourcePosition, bool) {
	if t.closed {
		return SourcePosition{}, false
	}
	pos, ok := t.positions[routine]
	return pos, ok
}

func (t *sidecarTable) Close() error {
	t.positions = nil
	t.closed = true
	return nil
}
