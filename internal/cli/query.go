package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	StepOptions
	Database string
	Fixtures string // YAML rows keyed by schema name
}

// QueryOutput is a rendered statement and the rows it returned.
type QueryOutput struct {
	RenderResult
	QueryID string        `json:"query_id"`
	Columns []string      `json:"columns"`
	Rows    []ir.IRObject `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir> <template>",
		Short: "Run a template against a SQLite database",
		Long: `Apply steps to a template, execute the statement against a SQLite
database and print the rows. Tables for every schema are created if
missing; --fixtures inserts rows first. Every statement is recorded in
the database's query log.

Steps are given as for render.

Examples:
  criteria query ./specs Users --db ./app.db --set status=active
  criteria query ./specs Users --fixtures rows.yaml --and age:LT:18`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "YAML file with rows to insert, keyed by schema name")
	addStepFlags(cmd, &opts.StepOptions)

	return cmd
}

func runQuery(opts *QueryOptions, specsDir, template string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cat, steps, err := prepare(formatter, specsDir, &opts.StepOptions)
	if err != nil {
		return err
	}

	var fixtures map[string][]ir.IRObject
	if opts.Fixtures != "" {
		if fixtures, err = loadFixtures(opts.Fixtures); err != nil {
			_ = formatter.Error(ErrCodeBadFlag, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid fixtures", err)
		}
	}

	st, err := store.Open(opts.Database, store.WithLogger(commandLogger(cmd, opts.Verbose)))
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if err := st.Load(ctx, cat.Schemas(), fixtures); err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}

	rendered, stmt, err := render(cat, template, steps)
	if err != nil {
		return outputCriteriaError(formatter, err)
	}
	formatter.VerboseLog("SQL: %s", rendered.SQL)

	res, err := st.Query(ctx, template, stmt)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}

	out := QueryOutput{
		RenderResult: *rendered,
		QueryID:      res.QueryID,
		Columns:      res.Columns,
		Rows:         res.Rows,
	}
	if formatter.isJSON() {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s\n\n", out.SQL)
	for _, row := range out.Rows {
		fmt.Fprintln(w, canonical(row))
	}
	fmt.Fprintf(w, "\n%d row(s), query %s\n", len(out.Rows), out.QueryID)
	return nil
}

// loadFixtures reads rows keyed by schema name.
func loadFixtures(path string) (map[string][]ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures file: %w", err)
	}
	var rows map[string][]ir.IRObject
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parsing fixtures file: %w", err)
	}
	return rows, nil
}

// commandLogger logs to the command's stderr, at Debug when verbose.
func commandLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
