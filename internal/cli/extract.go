package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/store"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	DB       string // catalog database path
	Manifest string // extraction manifest path
}

// ExtractionSummary reports what one extraction run recorded.
type ExtractionSummary struct {
	Units    []UnitSummary `json:"units"`
	Catalog  string        `json:"catalog"`
}

// UnitSummary is the per-unit portion of an extraction summary.
type UnitSummary struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Routines  int    `json:"routines"`
	Contracts int    `json:"contracts"`
	Types     int    `json:"types"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract <units-dir>",
		Short: "Extract contracts into the catalog",
		Long: `Extract embedded contracts from unit descriptions into a catalog.

Every routine and type of each target unit is queried once; results,
including recorded absences, land in the catalog database. With a
manifest, out-of-band contract units are aggregated into their primary
unit's results.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "contracts.db", "catalog database path")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "extraction manifest (YAML)")

	return cmd
}

func runExtract(opts *ExtractOptions, unitsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, manifest, err := loadExtractionInputs(opts, unitsDir, formatter)
	if err != nil {
		return err
	}

	catalogPath := opts.DB
	if manifest.Catalog != "" && !cmd.Flags().Changed("db") {
		catalogPath = manifest.Catalog
	}

	s, err := store.Open(catalogPath)
	if err != nil {
		formatter.Error(ErrCodeCatalog, fmt.Sprintf("opening catalog: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	summary := ExtractionSummary{Catalog: catalogPath}
	ctx := cmd.Context()

	for _, mu := range manifest.Units {
		provider, unit, release, err := buildProvider(mu, loaded)
		if err != nil {
			formatter.Error(ErrCodeManifest, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}

		formatter.VerboseLog("Extracting unit: %s", unit.Identity.Name)
		err = s.SnapshotUnit(ctx, unit, provider)
		if cerr := release(); err == nil {
			err = cerr
		}
		if err != nil {
			formatter.Error(ErrCodeCatalog, fmt.Sprintf("extracting %s: %v", unit.Identity.Name, err), nil)
			return NewExitError(ExitFailure, err.Error())
		}

		us, err := summarizeUnit(ctx, s, unit)
		if err != nil {
			formatter.Error(ErrCodeCatalog, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		summary.Units = append(summary.Units, us)
	}

	return outputExtractSuccess(formatter, summary)
}

// loadExtractionInputs loads the unit directory and resolves the
// manifest, defaulting to every loaded unit standalone.
func loadExtractionInputs(opts *ExtractOptions, unitsDir string, formatter *OutputFormatter) (*LoadResult, *Manifest, error) {
	loaded, loadErrors := LoadUnits(unitsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message, nil)
			return nil, nil, NewExitError(ExitCommandError, loadErr.Message)
		}
		formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return nil, nil, NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, unitsDir)

	if opts.Manifest == "" {
		return loaded, DefaultManifest(loaded.Units), nil
	}

	manifest, err := ReadManifest(opts.Manifest)
	if err != nil {
		formatter.Error(ErrCodeManifest, err.Error(), nil)
		return nil, nil, NewExitError(ExitCommandError, err.Error())
	}
	return loaded, manifest, nil
}

func summarizeUnit(ctx context.Context, s *store.Store, unit *ir.CompiledUnit) (UnitSummary, error) {
	us := UnitSummary{Name: unit.Identity.Name, Version: unit.Identity.Version}

	routines, err := s.ReadUnitRoutineContracts(ctx, unit.Identity)
	if err != nil {
		return us, err
	}
	us.Routines = len(routines)
	for _, e := range routines {
		if !e.Absent {
			us.Contracts++
		}
	}

	types, err := s.ReadUnitTypeContracts(ctx, unit.Identity)
	if err != nil {
		return us, err
	}
	for _, e := range types {
		if !e.Absent {
			us.Types++
		}
	}

	return us, nil
}

func outputExtractSuccess(formatter *OutputFormatter, summary ExtractionSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	for _, us := range summary.Units {
		fmt.Fprintf(formatter.Writer, "✓ %s: %d/%d routine contract(s), %d type contract(s)\n",
			us.Name, us.Contracts, us.Routines, us.Types)
	}
	fmt.Fprintf(formatter.Writer, "Catalog: %s\n", summary.Catalog)
	return nil
}
