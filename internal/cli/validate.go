package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tactline/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <kb-dir>",
		Short: "Validate a knowledge base without printing IR",
		Long: `Validate the CUE knowledge base in a directory.

Reports every validation error rather than stopping at the first one.
Default binding cycles are reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("Validating knowledge base in %s", dir)

	kb, verrs, err := loadKB(dir)
	if err != nil {
		loadErr := asLoadError(err)
		verrs = []compiler.ValidationError{{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    loadErr.Line(),
		}}
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, "✗ Validation failed", verrs, ExitFailure)
	}

	warnings := compiler.AnalyzeBindings(kb)
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Warnings: warnings})
	}

	fmt.Fprintln(formatter.Writer, "✓ Knowledge base valid")
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
	return nil
}

// outputValidationErrors reports every error and returns an ExitError with
// exitCode.
func outputValidationErrors(formatter *OutputFormatter, header string, errs []compiler.ValidationError, exitCode int) error {
	failure := NewExitError(exitCode, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		err := encodeIndented(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, header)
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", e.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
	}
	return failure
}
