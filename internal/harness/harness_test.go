package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/ir"
)

const specsDir = "../../testdata/specs"

func userFixtures() map[string][]ir.IRObject {
	user := func(id int64, name, status string, age int64) ir.IRObject {
		return ir.IRObject{
			"id":        ir.IRInt(id),
			"name":      ir.IRString(name),
			"status":    ir.IRString(status),
			"age":       ir.IRInt(age),
			"accountId": ir.IRInt(10),
		}
	}
	return map[string][]ir.IRObject{
		"Zone":    {{"id": ir.IRInt(1), "name": ir.IRString("eu")}},
		"Account": {{"id": ir.IRInt(10), "state": ir.IRString("enabled"), "zoneId": ir.IRInt(1)}},
		"User": {
			user(1, "ada", "active", 36),
			user(2, "bob", "banned", 17),
		},
	}
}

func setStep(name string, values ...ir.IRValue) ir.Step {
	return ir.Step{Action: ir.StepSet, Name: name, Values: values}
}

func TestRun_Passes(t *testing.T) {
	where := "users.status = ?"
	scenario := &Scenario{
		Name:        "active",
		Description: "Active users",
		Specs:       specsDir,
		Template:    "Users",
		Fixtures:    userFixtures(),
		Steps:       []ir.Step{setStep("status", ir.IRString("active"))},
		Expect:      Expect{Where: &where},
		Assertions: []Assertion{
			{Type: AssertRowCount, Count: 1},
			{Type: AssertRowsContain, Match: ir.IRObject{"name": ir.IRString("ada"), "account_id": ir.IRInt(10)}},
			{Type: AssertQueryLogged, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Error)

	assert.Equal(t, "users.status = ?", result.Where)
	assert.Equal(t, ir.IRArray{ir.IRString("active")}, result.Values)
	assert.Equal(t, ir.IRArray{ir.IRString("active")}, result.Args)
	assert.Contains(t, result.SQL, "INNER JOIN accounts ON users.account_id = accounts.id")

	require.Len(t, result.QueryLog, 1)
	rec := result.QueryLog[0]
	assert.Equal(t, "query-0001", rec.ID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "Users", rec.Template)
	assert.Equal(t, int64(1), rec.Rows)
	assert.NotEmpty(t, rec.Fingerprint)
}

func TestRun_FailedExpectation(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_count",
		Description: "Expects too many rows",
		Specs:       specsDir,
		Template:    "Users",
		Fixtures:    userFixtures(),
		Assertions:  []Assertion{{Type: AssertRowCount, Count: 5}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Actual: 2 row(s)")
}

func TestRun_CriteriaErrorIsRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_join",
		Description: "Binds a join that does not exist",
		Specs:       specsDir,
		Template:    "Users",
		Steps: []ir.Step{
			{Action: ir.StepSet, Join: "planet", Name: "name", Values: ir.IRArray{ir.IRString("mars")}},
		},
		Expect: Expect{Error: "UNKNOWN_JOIN"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Error, "UNKNOWN_JOIN")
	assert.Empty(t, result.SQL)
	assert.Empty(t, result.QueryLog)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_condition",
		Description: "Binds a condition that does not exist",
		Specs:       specsDir,
		Template:    "Users",
		Steps:       []ir.Step{setStep("shoeSize", ir.IRInt(42))},
		Assertions:  []Assertion{{Type: AssertRowCount, Count: 0}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1, "assertions are skipped after a failure")
	assert.Contains(t, result.Errors[0], "UNKNOWN_CONDITION")
}

func TestRun_InfrastructureErrors(t *testing.T) {
	t.Run("missing specs", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Specs: filepath.Join(t.TempDir(), "none"), Template: "Users"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load specs")
	})

	t.Run("bad fixtures", func(t *testing.T) {
		_, err := Run(&Scenario{
			Name:     "x",
			Specs:    specsDir,
			Template: "Users",
			Fixtures: map[string][]ir.IRObject{"Ghost": {{"id": ir.IRInt(1)}}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load fixtures")
	})
}

func TestHarness_RunIsIsolated(t *testing.T) {
	cat, err := LoadCatalog(specsDir)
	require.NoError(t, err)
	h := New(cat)

	scenario := &Scenario{
		Name:       "isolated",
		Template:   "Users",
		Fixtures:   userFixtures(),
		Assertions: []Assertion{{Type: AssertRowCount, Count: 2}},
	}

	first, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, second.Pass, "errors: %v", second.Errors)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.QueryLog, second.QueryLog)
}

func TestNewResult(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	assert.NotNil(t, r.Values)
	assert.NotNil(t, r.Rows)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
