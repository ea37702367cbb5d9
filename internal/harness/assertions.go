package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
)

// AssertionError is returned when an expectation or assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Rows     []ir.IRObject // Returned rows for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatValue(row))
		}
	}

	return buf.String()
}

// checkExpect compares the result against the scenario's expect clause.
// runErr is the failure recorded in the result, if any.
func checkExpect(result *Result, expect Expect, runErr error) []string {
	var errs []string
	fail := func(typ, expected, actual string) {
		errs = append(errs, (&AssertionError{Type: typ, Expected: expected, Actual: actual}).Error())
	}

	if expect.Error != "" {
		if runErr == nil {
			fail("error", fmt.Sprintf("error %q", expect.Error), "no error")
		} else if !matchError(runErr, expect.Error) {
			fail("error", fmt.Sprintf("error %q", expect.Error), runErr.Error())
		}
		return errs
	}
	if runErr != nil {
		fail("error", "no error", runErr.Error())
		return errs
	}

	if expect.Where != nil && *expect.Where != result.Where {
		fail("where", quote(*expect.Where), quote(result.Where))
	}
	if expect.Values != nil && !valuesEqual(result.Values, *expect.Values) {
		fail("values", formatValue(*expect.Values), formatValue(result.Values))
	}
	if expect.SQL != "" && expect.SQL != result.SQL {
		fail("sql", quote(expect.SQL), quote(result.SQL))
	}
	if expect.Args != nil && !valuesEqual(result.Args, *expect.Args) {
		fail("args", formatValue(*expect.Args), formatValue(result.Args))
	}
	if expect.Rows != nil && !valuesEqual(result.Rows, expect.Rows) {
		errs = append(errs, (&AssertionError{
			Type:     "rows",
			Expected: formatValue(expect.Rows),
			Actual:   fmt.Sprintf("%d row(s)", len(result.Rows)),
			Rows:     result.Rows,
		}).Error())
	}
	return errs
}

// matchError reports whether err carries the criteria code want or
// contains want as a substring.
func matchError(err error, want string) bool {
	if string(criteria.Code(err)) == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

// assertRowsContain checks if some returned row matches the expected
// columns (subset match).
func assertRowsContain(rows []ir.IRObject, assertion Assertion) error {
	for _, row := range rows {
		if matchRow(row, assertion.Match) {
			return nil // Found matching row
		}
	}

	return &AssertionError{
		Type:     AssertRowsContain,
		Expected: fmt.Sprintf("row matching %s", formatValue(assertion.Match)),
		Actual:   "not found in rows",
		Rows:     rows,
	}
}

// assertRowOrder checks that the first rows carrying each expected value
// appear in the specified order. Rows don't need to be consecutive.
func assertRowOrder(rows []ir.IRObject, assertion Assertion) error {
	// Step 1: Find first position of each expected value
	positions := make([]int, len(assertion.Values))
	for i, want := range assertion.Values {
		for j, row := range rows {
			if valuesEqual(row[assertion.Field], want) {
				positions[i] = j + 1 // 1-indexed for readability
				break
			}
		}
	}

	// Step 2: Verify all values found
	for i, want := range assertion.Values {
		if positions[i] == 0 {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("%s values present: %s", assertion.Field, formatValue(assertion.Values)),
				Actual:   fmt.Sprintf("missing value: %s", formatValue(want)),
				Rows:     rows,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Values); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("%s values in order: %s", assertion.Field, formatValue(assertion.Values)),
				Actual: fmt.Sprintf("%s (row %d) should be before %s (row %d)",
					formatValue(assertion.Values[i-1]), positions[i-1],
					formatValue(assertion.Values[i]), positions[i]),
				Rows: rows,
			}
		}
	}

	return nil
}

// assertRowCount checks the exact number of returned rows.
func assertRowCount(rows []ir.IRObject, assertion Assertion) error {
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d row(s)", assertion.Count),
			Actual:   fmt.Sprintf("%d row(s)", len(rows)),
			Rows:     rows,
		}
	}
	return nil
}

// assertQueryLogged checks how many statements the query log holds for a
// template.
func assertQueryLogged(log []ir.QueryRecord, assertion Assertion) error {
	count := 0
	for _, rec := range log {
		if rec.Template == assertion.Template {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertQueryLogged,
			Expected: fmt.Sprintf("%d logged statement(s) for %s", assertion.Count, assertion.Template),
			Actual:   fmt.Sprintf("%d logged statement(s)", count),
		}
	}
	return nil
}

// matchRow checks if row contains all expected columns (subset match).
// Extra columns in row are ignored.
func matchRow(row, expected ir.IRObject) bool {
	for key, want := range expected {
		got, exists := row[key]
		if !exists {
			return false // Required column missing
		}
		if !valuesEqual(got, want) {
			return false // Value mismatch
		}
	}
	return true
}

// valuesEqual compares two values for equality.
// Handles nested objects and arrays of IR values.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// formatValue renders v as canonical JSON for messages.
func formatValue(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// template is the default for query_logged assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, template string) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRowsContain:
			err = assertRowsContain(result.Rows, assertion)
		case AssertRowOrder:
			err = assertRowOrder(result.Rows, assertion)
		case AssertRowCount:
			err = assertRowCount(result.Rows, assertion)
		case AssertQueryLogged:
			if assertion.Template == "" {
				assertion.Template = template
			}
			err = assertQueryLogged(result.QueryLog, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
