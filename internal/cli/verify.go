package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhchina/cci/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	DB       string
	Manifest string
}

// VerificationResult reports catalog divergences per unit.
type VerificationResult struct {
	Clean       bool              `json:"clean"`
	Divergences []UnitDivergences `json:"divergences,omitempty"`
}

// UnitDivergences groups divergences by unit.
type UnitDivergences struct {
	Unit    string             `json:"unit"`
	Entries []store.Divergence `json:"entries"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <units-dir>",
		Short: "Verify the catalog against fresh extraction",
		Long: `Re-extract each unit and compare the results against the catalog.

Divergences mean the units changed after they were snapshotted: rows the
catalog is missing, rows whose payload changed, and stale rows fresh
extraction no longer produces. Exits 1 when any divergence is found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "contracts.db", "catalog database path")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "extraction manifest (YAML)")

	return cmd
}

func runVerify(opts *VerifyOptions, unitsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	extractOpts := &ExtractOptions{RootOptions: opts.RootOptions, Manifest: opts.Manifest}
	loaded, manifest, err := loadExtractionInputs(extractOpts, unitsDir, formatter)
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

	result := VerificationResult{Clean: true}
	ctx := cmd.Context()

	for _, mu := range manifest.Units {
		provider, unit, release, err := buildProvider(mu, loaded)
		if err != nil {
			formatter.Error(ErrCodeManifest, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}

		formatter.VerboseLog("Verifying unit: %s", unit.Identity.Name)
		divergences, err := s.VerifyUnit(ctx, unit, provider)
		if cerr := release(); err == nil {
			err = cerr
		}
		if err != nil {
			formatter.Error(ErrCodeCatalog, fmt.Sprintf("verifying %s: %v", unit.Identity.Name, err), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		if len(divergences) > 0 {
			result.Clean = false
			result.Divergences = append(result.Divergences, UnitDivergences{
				Unit:    unit.Identity.Name,
				Entries: divergences,
			})
		}
	}

	return outputVerifyResult(formatter, result)
}

func outputVerifyResult(formatter *OutputFormatter, result VerificationResult) error {
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
		if !result.Clean {
			return NewExitError(ExitFailure, "catalog diverges from fresh extraction")
		}
		return nil
	}

	if result.Clean {
		fmt.Fprintln(formatter.Writer, "✓ Catalog matches fresh extraction")
		return nil
	}

	for _, ud := range result.Divergences {
		fmt.Fprintf(formatter.Writer, "✗ %s:\n", ud.Unit)
		for _, d := range ud.Entries {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", d.Kind, d.Key)
		}
	}
	return NewExitError(ExitFailure, "catalog diverges from fresh extraction")
}
