package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fhchina/cci/internal/extract"
	"github.com/fhchina/cci/internal/ir"
)

// Manifest describes an extraction run: which units to process and where
// their out-of-band contracts live.
type Manifest struct {
	// Catalog is the catalog database path. A --db flag overrides it.
	Catalog string `yaml:"catalog,omitempty"`

	Units []ManifestUnit `yaml:"units"`
}

// ManifestUnit is one extraction target.
type ManifestUnit struct {
	// Name of the unit, matching its identity in the CUE description.
	Name string `yaml:"name"`

	// Contracts lists reference units whose contracts are aggregated
	// into this unit's results, in query order.
	Contracts []string `yaml:"contracts,omitempty"`
}

// ReadManifest parses an extraction manifest from a YAML file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Units) == 0 {
		return nil, fmt.Errorf("manifest %s lists no units", path)
	}
	for i, mu := range m.Units {
		if mu.Name == "" {
			return nil, fmt.Errorf("manifest %s: unit %d has no name", path, i)
		}
	}
	return &m, nil
}

// DefaultManifest builds a manifest covering every loaded unit with no
// out-of-band aggregation.
func DefaultManifest(units []*ir.CompiledUnit) *Manifest {
	m := &Manifest{}
	for _, u := range units {
		m.Units = append(m.Units, ManifestUnit{Name: u.Identity.Name})
	}
	return m
}

// buildProvider assembles the extractor stack for one manifest unit:
// a proxy-aware extractor over the unit itself, aggregated with one
// provider per referenced contract unit. The returned release func
// closes every extractor the stack opened; callers must run it once
// the provider is no longer needed.
func buildProvider(mu ManifestUnit, loaded *LoadResult) (extract.Provider, *ir.CompiledUnit, func() error, error) {
	unit, ok := loaded.UnitByName(mu.Name)
	if !ok {
		return nil, nil, nil, fmt.Errorf("manifest names unknown unit %q", mu.Name)
	}

	var closers []io.Closer
	release := func() error {
		var first error
		for _, c := range closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	primary, closer, err := unitProvider(unit)
	if err != nil {
		return nil, nil, nil, err
	}
	closers = append(closers, closer)

	if len(mu.Contracts) == 0 {
		return primary, unit, release, nil
	}

	var opts []extract.AggregateOption
	for _, name := range mu.Contracts {
		secUnit, ok := loaded.UnitByName(name)
		if !ok {
			_ = release()
			return nil, nil, nil, fmt.Errorf("unit %q references unknown contract unit %q", mu.Name, name)
		}
		secondary, closer, err := unitProvider(secUnit)
		if err != nil {
			_ = release()
			return nil, nil, nil, err
		}
		closers = append(closers, closer)
		opts = append(opts, extract.WithSecondary(extract.SecondaryProvider{
			Provider: secondary,
			Unit:     secUnit,
		}))
	}

	return extract.NewAggregateExtractor(unit, primary, opts...), unit, release, nil
}

// unitProvider builds the per-unit stack: lazy extraction wrapped by
// proxy redirection. The lazy extractor owns the debug sidecar handle,
// so it is also returned as the stack's closer.
func unitProvider(unit *ir.CompiledUnit) (extract.Provider, io.Closer, error) {
	lazy, err := extract.NewLazyExtractor(unit)
	if err != nil {
		return nil, nil, fmt.Errorf("unit %q: %w", unit.Identity.Name, err)
	}
	return extract.NewProxyExtractor(unit, lazy), lazy, nil
}
