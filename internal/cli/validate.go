package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhchina/cci/internal/compiler"
)

// ValidationResult holds validation results for all loaded units.
type ValidationResult struct {
	Valid    bool                        `json:"valid"`
	Errors   []compiler.ValidationError  `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning     `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <units-dir>",
		Short: "Validate unit descriptions without extraction",
		Long: `Validate CUE unit descriptions without running extraction.

Checks referential integrity (proxy targets, accessor fields, duplicate
symbols) and reports contract reference cycles as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, unitsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadUnits(unitsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		formatter.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, unitsDir)

	result := ValidationResult{Valid: true}

	// Compile errors surface as validation errors so one run reports
	// everything.
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
			})
		} else {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: err.Error(),
				Code:    ErrCodeGeneric,
			})
		}
	}

	for _, unit := range loadResult.Units {
		formatter.VerboseLog("Validating unit: %s", unit.Identity.Name)
		result.Errors = append(result.Errors, compiler.Validate(unit)...)
		result.Warnings = append(result.Warnings, compiler.AnalyzeCycles(unit)...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationFailure(formatter, result)
	}

	return outputValidationSuccess(formatter, result, len(loadResult.Units))
}

func outputValidationSuccess(formatter *OutputFormatter, result ValidationResult, unitCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Validated %d unit(s)\n", unitCount)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		formatter.Success(result)
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %d validation error(s)\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
}
