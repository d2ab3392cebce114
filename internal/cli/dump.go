package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhchina/cci/internal/ir"
	"github.com/fhchina/cci/internal/query"
	"github.com/fhchina/cci/internal/store"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	DB   string
	Unit string // optional unit name filter
	Only string // "", "contracts", or "absent"
}

// CatalogDump is the payload of the dump command.
type CatalogDump struct {
	Units []UnitDump `json:"units"`
}

// UnitDump lists the rows recorded for one unit.
type UnitDump struct {
	Name     string               `json:"name"`
	Version  string               `json:"version,omitempty"`
	Routines []store.RoutineEntry `json:"routines"`
	Types    []store.TypeEntry    `json:"types"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump catalog contents",
		Long: `Print the recorded contracts of a catalog database.

Rows come out in recording order, so repeated dumps of the same catalog
are byte-identical.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "contracts.db", "catalog database path")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "restrict to one unit by name")
	cmd.Flags().StringVar(&opts.Only, "only", "", "restrict rows (contracts|absent)")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Only != "" && opts.Only != "contracts" && opts.Only != "absent" {
		msg := fmt.Sprintf("invalid --only value %q: must be contracts or absent", opts.Only)
		formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	s, err := store.Open(opts.DB)
	if err != nil {
		formatter.Error(ErrCodeCatalog, fmt.Sprintf("opening catalog: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	ctx := cmd.Context()
	units, err := s.ReadUnits(ctx)
	if err != nil {
		formatter.Error(ErrCodeCatalog, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	dump := CatalogDump{}
	for _, u := range units {
		if opts.Unit != "" && u.Name != opts.Unit {
			continue
		}
		ud, err := dumpUnit(ctx, s, u, opts.Only)
		if err != nil {
			formatter.Error(ErrCodeCatalog, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		dump.Units = append(dump.Units, ud)
	}

	if opts.Unit != "" && len(dump.Units) == 0 {
		msg := fmt.Sprintf("unit %q not found in catalog", opts.Unit)
		formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	return outputDump(formatter, dump)
}

func dumpUnit(ctx context.Context, s *store.Store, u ir.UnitIdentity, only string) (UnitDump, error) {
	ud := UnitDump{Name: u.Name, Version: u.Version}

	f := dumpFilter(u, only)
	var err error
	if ud.Routines, err = s.QueryRoutineContracts(ctx, f); err != nil {
		return ud, err
	}
	if ud.Types, err = s.QueryTypeContracts(ctx, f); err != nil {
		return ud, err
	}
	return ud, nil
}

func dumpFilter(u ir.UnitIdentity, only string) query.Filter {
	base := query.ForUnit(u.Name, u.Version)
	if only == "" {
		return base
	}
	return query.And{Filters: []query.Filter{
		base,
		query.HasContract{Value: only == "contracts"},
	}}
}

func outputDump(formatter *OutputFormatter, dump CatalogDump) error {
	if formatter.Format == "json" {
		return formatter.Success(dump)
	}

	for _, ud := range dump.Units {
		fmt.Fprintf(formatter.Writer, "%s %s\n", ud.Name, ud.Version)
		for _, e := range ud.Routines {
			fmt.Fprintf(formatter.Writer, "  routine %s %s\n", rowState(e.Absent), e.Key)
		}
		for _, e := range ud.Types {
			fmt.Fprintf(formatter.Writer, "  type    %s %s\n", rowState(e.Absent), e.Key)
		}
	}
	return nil
}

func rowState(absent bool) string {
	if absent {
		return "absent  "
	}
	return "contract"
}
