package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/criteria/internal/ir"
)

// Snapshot renders the deterministic part of a result as canonical JSON:
// the compiled clause, the statement, the rows and the query log without
// fingerprints.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	log := make(ir.IRArray, len(result.QueryLog))
	for i, rec := range result.QueryLog {
		log[i] = ir.IRObject{
			"id":       ir.IRString(rec.ID),
			"seq":      ir.IRInt(rec.Seq),
			"template": ir.IRString(rec.Template),
			"rows":     ir.IRInt(rec.Rows),
		}
	}
	rows := make(ir.IRArray, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = row
	}

	snapshot := ir.IRObject{
		"scenario_name": ir.IRString(scenario.Name),
		"template":      ir.IRString(scenario.Template),
		"where":         ir.IRString(result.Where),
		"values":        result.Values,
		"sql":           ir.IRString(result.SQL),
		"args":          result.Args,
		"rows":          rows,
		"query_log":     log,
	}
	if result.Error != "" {
		snapshot["error"] = ir.IRString(result.Error)
	}
	return ir.MarshalCanonical(snapshot)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file of
// scenario without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
