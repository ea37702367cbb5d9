package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/querysql"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	StepOptions
}

// RenderResult is a compiled criteria and the statement assembled from it.
type RenderResult struct {
	Template string     `json:"template"`
	Where    string     `json:"where"`
	Values   ir.IRArray `json:"values"`
	SQL      string     `json:"sql"`
	Args     ir.IRArray `json:"args"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <specs-dir> <template>",
		Short: "Print the SQL a template renders for a set of steps",
		Long: `Create a criteria from a template, apply steps to it and print the
WHERE clause, its values and the assembled statement. Nothing is executed.

Steps are given with flags and applied in command-line order:
  --set [join.]name=v1,v2        bind a condition (empty list: --set names=)
  --clear [join.]name            unbind a condition
  --and [join.]field:OP[:v1,v2]  add a condition
  --or [join.]field:OP[:v1,v2]   add an OR condition
  --group-by v1,v2               bind the HAVING values
  --steps file.yaml              steps applied before the flags

Values are integers, true, false or null; anything else is a string.

Examples:
  criteria render ./specs Users --set status=active --and age:GTEQ:18
  criteria render ./specs Users --set account.state=enabled --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], args[1], cmd)
		},
	}

	addStepFlags(cmd, &opts.StepOptions)

	return cmd
}

func runRender(opts *RenderOptions, specsDir, template string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cat, steps, err := prepare(formatter, specsDir, &opts.StepOptions)
	if err != nil {
		return err
	}

	result, _, err := render(cat, template, steps)
	if err != nil {
		return outputCriteriaError(formatter, err)
	}

	if formatter.isJSON() {
		return formatter.Success(result)
	}
	writeRenderText(formatter, result)
	return nil
}

// prepare loads the catalog of specsDir and resolves the step flags.
func prepare(formatter *OutputFormatter, specsDir string, opts *StepOptions) (*catalog.Catalog, []ir.Step, error) {
	cat, err := LoadCatalog(specsDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	formatter.VerboseLog("Loaded %d template(s) from %s", len(cat.Names()), specsDir)

	steps, err := opts.resolveSteps()
	if err != nil {
		_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "invalid steps", err)
	}
	return cat, steps, nil
}

// render applies steps to a fresh criteria from template.
func render(cat *catalog.Catalog, template string, steps []ir.Step) (*RenderResult, querysql.Statement, error) {
	stmt, c, err := cat.Statement(template, steps)
	if err != nil {
		return nil, stmt, err
	}
	clause, err := c.Compile()
	if err != nil {
		return nil, stmt, err
	}

	result := &RenderResult{Template: template, Where: clause.SQL, SQL: stmt.SQL}
	if result.Values, err = ir.FromGoSlice(clause.Values); err != nil {
		return nil, stmt, fmt.Errorf("values: %w", err)
	}
	if result.Args, err = ir.FromGoSlice(stmt.Args); err != nil {
		return nil, stmt, fmt.Errorf("args: %w", err)
	}
	return result, stmt, nil
}

// outputCriteriaError reports a criteria that could not be built or
// compiled. The criteria error code, if any, goes into the details.
func outputCriteriaError(formatter *OutputFormatter, err error) error {
	var details any
	if code := criteria.Code(err); code != "" {
		details = map[string]string{"criteria_code": string(code)}
	}
	_ = formatter.Error(ErrCodeCriteria, err.Error(), details)
	if errors.Is(err, catalog.ErrUnknownTemplate) {
		return WrapExitError(ExitCommandError, "unknown template", err)
	}
	return WrapExitError(ExitFailure, "criteria rejected", err)
}

func writeRenderText(formatter *OutputFormatter, r *RenderResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Template: %s\n", r.Template)
	fmt.Fprintf(w, "Where:    %s\n", r.Where)
	fmt.Fprintf(w, "Values:   %s\n", canonical(r.Values))
	fmt.Fprintf(w, "SQL:      %s\n", r.SQL)
	fmt.Fprintf(w, "Args:     %s\n", canonical(r.Args))
}

// canonical renders v as canonical JSON, falling back to %v.
func canonical(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
