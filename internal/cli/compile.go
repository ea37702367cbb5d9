package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled schemas and templates.
type CompilationResult struct {
	Schemas   []ir.SchemaSpec   `json:"schemas"`
	Templates []ir.TemplateSpec `json:"templates"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	SchemaCount     int
	TemplateCount   int
	TotalFields     int
	TotalConditions int
	TotalJoins      int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE specs to IR",
		Long: `Compile CUE schema and template specs to IR.

The compiler parses CUE files, checks each schema and template
and outputs JSON for use by the catalog.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	for _, schema := range loadResult.Schemas {
		formatter.VerboseLog("Compiled schema: %s", schema.Name)
	}
	for _, tmpl := range loadResult.Templates {
		formatter.VerboseLog("Compiled template: %s", tmpl.Name)
	}

	// Handle compilation errors
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{
		Schemas:   loadResult.Schemas,
		Templates: loadResult.Templates,
	}
	stats := calculateStats(result)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		SchemaCount:   len(result.Schemas),
		TemplateCount: len(result.Templates),
	}

	for _, schema := range result.Schemas {
		stats.TotalFields += len(schema.Fields)
	}
	for _, tmpl := range result.Templates {
		stats.TotalConditions += len(tmpl.Conditions)
		stats.TotalJoins += len(tmpl.Joins)
	}

	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.isJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d schema(s), %d template(s)\n\n",
		stats.SchemaCount, stats.TemplateCount)

	if len(result.Schemas) > 0 {
		fmt.Fprintln(w, "Schemas:")
		for _, schema := range result.Schemas {
			fmt.Fprintf(w, "  %s (%s): %d field(s)\n", schema.Name, schema.Table, len(schema.Fields))
		}
		fmt.Fprintln(w)
	}

	if len(result.Templates) > 0 {
		fmt.Fprintln(w, "Templates:")
		for _, tmpl := range result.Templates {
			fmt.Fprintf(w, "  %s → %s: %d condition(s), %d join(s)\n",
				tmpl.Name, tmpl.Schema, len(tmpl.Conditions), len(tmpl.Joins))
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	failed := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.isJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			cliErrors[i].Code, cliErrors[i].Message = parseCompileError(err)
		}
		if err := formatter.Failure(cliErrors[0], cliErrors); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return failed
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result to a file.
func writeIRToFile(result *CompilationResult, filename string) error {
	// Indented for readability; canonical JSON is used only for hashing.
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
