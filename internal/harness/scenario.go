package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/ir"
)

// Scenario defines a conformance test scenario: a template from a spec
// directory, the rows to query, the caller's mutations and the expected
// statement and results.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the directory of CUE schema and template specs.
	// Relative paths are resolved against the scenario's base path.
	Specs string `yaml:"specs,omitempty"`

	// Template names the template the criteria is created from.
	Template string `yaml:"template"`

	// Fixtures are rows inserted before the query, keyed by schema name.
	Fixtures map[string][]ir.IRObject `yaml:"fixtures,omitempty"`

	// Steps are the caller's mutations, applied in order.
	Steps []ir.Step `yaml:"steps,omitempty"`

	// Expect describes the compiled statement and its outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the returned rows and the query log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect specifies the expected statement. Unset fields are not checked.
type Expect struct {
	// Where is the WHERE fragment of the root criteria, without joins.
	// A pointer so that an empty fragment can be expected.
	Where *string `yaml:"where,omitempty"`

	// Values are the arguments of Where.
	Values *ir.IRArray `yaml:"values,omitempty"`

	// SQL is the full statement.
	SQL string `yaml:"sql,omitempty"`

	// Args are the arguments of SQL.
	Args *ir.IRArray `yaml:"args,omitempty"`

	// Rows are the exact rows returned, in order.
	Rows []ir.IRObject `yaml:"rows,omitempty"`

	// Error is a criteria error code (e.g. "UNKNOWN_FIELD") or a substring
	// of the error. When set the scenario must fail with it.
	Error string `yaml:"error,omitempty"`
}

// empty reports whether nothing is expected.
func (e Expect) empty() bool {
	return e.Where == nil && e.Values == nil && e.SQL == "" && e.Args == nil && e.Rows == nil && e.Error == ""
}

// Assertion validates returned rows or the query log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows_contain": some row matches Match (subset match)
	// - "row_order": the first rows carrying each of Values in Field appear in order
	// - "row_count": exactly Count rows were returned
	// - "query_logged": the query log holds Count records for Template
	Type string `yaml:"type"`

	// Match holds the expected column values (used by rows_contain).
	Match ir.IRObject `yaml:"match,omitempty"`

	// Field is the column compared (used by row_order).
	Field string `yaml:"field,omitempty"`

	// Values is the expected order of Field values (used by row_order).
	Values ir.IRArray `yaml:"values,omitempty"`

	// Count is the expected number (used by row_count and query_logged).
	Count int `yaml:"count,omitempty"`

	// Template defaults to the scenario's template (used by query_logged).
	Template string `yaml:"template,omitempty"`
}

// Assertion type constants.
const (
	AssertRowsContain = "rows_contain"
	AssertRowOrder    = "row_order"
	AssertRowCount    = "row_count"
	AssertQueryLogged = "query_logged"
)

// LoadScenario reads and parses a scenario YAML file. A relative specs
// directory is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the specs directory relative to basePath. A scenario without a
// specs entry uses basePath itself, so one spec directory can serve a whole
// scenario directory.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	switch {
	case scenario.Specs == "":
		scenario.Specs = basePath
	case !filepath.IsAbs(scenario.Specs) && basePath != "":
		scenario.Specs = filepath.Join(basePath, scenario.Specs)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Specs); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: specs directory not found: %s", scenario.Specs)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without resolving or checking its
// specs directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Specs == "" {
		return fmt.Errorf("specs directory is required")
	}

	if s.Template == "" {
		return fmt.Errorf("template is required")
	}

	if s.Expect.empty() && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for i, step := range s.Steps {
		if errs := step.Validate(); len(errs) > 0 {
			return fmt.Errorf("steps[%d].%w", i, errs[0])
		}
	}

	for name, rows := range s.Fixtures {
		for i, row := range rows {
			if len(row) == 0 {
				return fmt.Errorf("fixtures.%s[%d]: row is empty", name, i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowsContain:
		if len(a.Match) == 0 {
			return fmt.Errorf("assertions[%d]: match is required for rows_contain", index)
		}
	case AssertRowOrder:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for row_order", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for row_order", index)
		}
	case AssertRowCount, AssertQueryLogged:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
