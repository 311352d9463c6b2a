package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled knowledge base and its hash.
type CompilationResult struct {
	KBHash        string                  `json:"kb_hash"`
	KnowledgeBase *ir.KnowledgeBase       `json:"kb"`
	Warnings      []compiler.CycleWarning `json:"warnings,omitempty"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	WorldLeaves int
	Intervals   int
	Events      int
	Rules       int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <kb-dir>",
		Short: "Compile a CUE knowledge base to canonical IR",
		Long: `Compile the CUE knowledge base in a directory.

The world schema, interval, event and rule definitions are parsed and
validated, default bindings are checked for cycles, and the result is
printed together with its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kb, verrs, err := loadKB(dir)
	if err != nil {
		loadErr := asLoadError(err)
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, "✗ Compilation failed", verrs, ExitCommandError)
	}

	hash, err := ir.KBHash(kb)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	result := &CompilationResult{
		KBHash:        hash,
		KnowledgeBase: kb,
		Warnings:      compiler.AnalyzeBindings(kb),
	}
	for _, w := range result.Warnings {
		formatter.VerboseLog("warning: %s", w.Message)
	}

	if opts.Output != "" {
		if err := writeKBFile(kb, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputCompileText(formatter, result, opts.Output)
	return nil
}

func calculateStats(kb *ir.KnowledgeBase) CompilationStats {
	return CompilationStats{
		WorldLeaves: countLeaves(kb.World),
		Intervals:   len(kb.Intervals),
		Events:      len(kb.Events),
		Rules:       len(kb.Rules),
	}
}

func countLeaves(props []ir.Property) int {
	n := 0
	for _, p := range props {
		if p.IsLeaf() {
			n++
			continue
		}
		n += countLeaves(p.Children)
	}
	return n
}

func outputCompileText(formatter *OutputFormatter, result *CompilationResult, outputFile string) {
	w := formatter.Writer
	kb := result.KnowledgeBase
	stats := calculateStats(kb)

	fmt.Fprintf(w, "✓ Compiled %d world property(ies), %d interval(s), %d event(s), %d rule(s)\n\n",
		stats.WorldLeaves, stats.Intervals, stats.Events, stats.Rules)

	if len(kb.Intervals) > 0 {
		fmt.Fprintln(w, "Intervals:")
		for _, d := range kb.Intervals {
			fmt.Fprintf(w, "  %s: open %s, close %s\n", d.ID, ir.Format(d.Open), ir.Format(d.Close))
		}
		fmt.Fprintln(w)
	}
	if len(kb.Events) > 0 {
		fmt.Fprintln(w, "Events:")
		for _, d := range kb.Events {
			fmt.Fprintf(w, "  %s: %s\n", d.ID, ir.Format(d.Occurs))
		}
		fmt.Fprintln(w)
	}
	if len(kb.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range kb.Rules {
			fmt.Fprintf(w, "  %s: %s\n", r.ID, ir.Format(r.Condition))
		}
		fmt.Fprintln(w)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warn.Message)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "KB hash: %s\n", result.KBHash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}
}

// writeKBFile writes the knowledge base as indented JSON.
// Canonical JSON without indentation is used only for hashing.
func writeKBFile(kb *ir.KnowledgeBase, filename string) error {
	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}
