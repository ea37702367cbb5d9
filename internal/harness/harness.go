package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/store"
	"github.com/roach88/criteria/internal/testutil"
)

// Harness executes scenarios against one catalog.
// It runs every scenario with deterministic query IDs and seq values.
type Harness struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a harness over cat. Logs are discarded.
func New(cat *catalog.Catalog) *Harness {
	return &Harness{
		catalog: cat,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
}

// LoadCatalog compiles and links the specs in dir.
func LoadCatalog(dir string) (*catalog.Catalog, error) {
	specs, errs := compiler.LoadDir(dir, true)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load specs: %w", errors.Join(errs...))
	}
	cat, err := catalog.Build(specs.Schemas, specs.Templates)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return cat, nil
}

// Run loads the scenario's specs and executes it.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile the spec directory and link the catalog
// 2. Create fresh in-memory database and load fixtures
// 3. Apply steps and assemble the statement
// 4. Execute the statement
// 5. Check expectations and assertions
//
// The returned error reports broken infrastructure (specs, fixtures).
// Failures of the criteria itself are recorded in Result.Error.
func Run(scenario *Scenario) (*Result, error) {
	cat, err := LoadCatalog(scenario.Specs)
	if err != nil {
		return nil, err
	}
	return New(cat).Run(context.Background(), scenario)
}

// Run executes scenario against the harness catalog.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDGenerator("query")),
		store.WithClock(testutil.NewClock()),
		store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Load(ctx, h.catalog.Schemas(), scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	result := NewResult()
	runErr := h.execute(ctx, st, scenario, result)
	if runErr != nil {
		result.Error = runErr.Error()
	}

	log, err := st.ReadQueryLog(ctx)
	if err != nil {
		return nil, err
	}
	result.QueryLog = log

	for _, msg := range checkExpect(result, scenario.Expect, runErr) {
		result.AddError(msg)
	}
	if runErr == nil {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, scenario.Template) {
			result.AddError(msg)
		}
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"template", scenario.Template,
		"rows", len(result.Rows),
		"pass", result.Pass,
	)
	return result, nil
}

// execute fills result with the compiled clause, the statement and its
// rows. It stops at the first failure.
func (h *Harness) execute(ctx context.Context, st *store.Store, scenario *Scenario, result *Result) error {
	stmt, c, err := h.catalog.Statement(scenario.Template, scenario.Steps)
	if err != nil {
		return err
	}

	clause, err := c.Compile()
	if err != nil {
		return err
	}
	result.Where = clause.SQL
	if result.Values, err = ir.FromGoSlice(clause.Values); err != nil {
		return fmt.Errorf("values: %w", err)
	}

	result.SQL = stmt.SQL
	if result.Args, err = ir.FromGoSlice(stmt.Args); err != nil {
		return fmt.Errorf("args: %w", err)
	}

	res, err := st.Query(ctx, scenario.Template, stmt)
	if err != nil {
		return err
	}
	result.Rows = res.Rows
	return nil
}
