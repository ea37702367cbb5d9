package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/querysql"
)

func testSchemas() []ir.SchemaSpec {
	return []ir.SchemaSpec{
		{Name: "User", Table: "users", Fields: []ir.FieldSpec{
			{Name: "accountId", Column: "account_id", Type: "int"},
			{Name: "age", Column: "age", Type: "int"},
			{Name: "id", Column: "id", Type: "int", Key: true},
			{Name: "role", Column: "role", Type: "string"},
			{Name: "status", Column: "status", Type: "string"},
		}},
		{Name: "Account", Table: "accounts", Fields: []ir.FieldSpec{
			{Name: "id", Column: "id", Type: "int", Key: true},
			{Name: "state", Column: "state", Type: "string"},
			{Name: "zoneId", Column: "zone_id", Type: "int"},
		}},
		{Name: "Zone", Table: "zones", Fields: []ir.FieldSpec{
			{Name: "id", Column: "id", Type: "int", Key: true},
			{Name: "name", Column: "name", Type: "string"},
		}},
	}
}

func testTemplates() []ir.TemplateSpec {
	return []ir.TemplateSpec{
		{
			Name:   "Users",
			Schema: "User",
			Conditions: []ir.ConditionSpec{
				{Name: "status", Field: "status", Op: "EQ"},
				{Name: "minAge", Conj: "AND", Field: "age", Op: "GTEQ"},
				{Name: "either", Conj: "AND", Op: "SC"},
			},
			Joins: []ir.JoinSpec{{Name: "account", Template: "Accounts", Local: "accountId", Remote: "id"}},
			Limit: 100,
		},
		{
			Name:       "Accounts",
			Schema:     "Account",
			Conditions: []ir.ConditionSpec{{Name: "state", Field: "state", Op: "EQ"}},
			Joins:      []ir.JoinSpec{{Name: "zone", Template: "Zones", Local: "zoneId", Remote: "id", Type: "left"}},
		},
		{
			Name:       "Zones",
			Schema:     "Zone",
			Conditions: []ir.ConditionSpec{{Name: "name", Field: "name", Op: "EQ"}},
		},
		{
			Name:   "Roles",
			Schema: "User",
			Conditions: []ir.ConditionSpec{
				{Name: "a", Field: "role", Op: "EQ"},
				{Name: "b", Conj: "OR", Field: "role", Op: "EQ"},
			},
		},
		{
			Name:    "StatusCounts",
			Schema:  "User",
			Select:  []ir.SelectSpec{{Field: "status"}, {Func: "COUNT"}},
			GroupBy: &ir.GroupBySpec{Fields: []string{"status"}, Having: &ir.HavingSpec{Func: "COUNT", Op: "GT"}},
		},
	}
}

func buildCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Build(testSchemas(), testTemplates())
	require.NoError(t, err)
	return cat
}

func str(s string) ir.IRValue { return ir.IRString(s) }

const usersFrom = "SELECT users.* FROM users" +
	" INNER JOIN accounts ON users.account_id = accounts.id" +
	" LEFT JOIN zones ON accounts.zone_id = zones.id"

func TestBuild(t *testing.T) {
	cat := buildCatalog(t)

	assert.Equal(t, []string{"Accounts", "Roles", "StatusCounts", "Users", "Zones"}, cat.Names())

	users, err := cat.Entry("Users")
	require.NoError(t, err)
	assert.Equal(t, "Users", users.Template.Name())
	assert.Equal(t, []string{"account"}, users.Template.JoinNames())
	assert.Equal(t, "User", users.Schema.Name)
	assert.Equal(t, int64(100), users.Options.Limit)
	require.Len(t, users.Options.OrderBy, 1)
	assert.Equal(t, "users.id", users.Options.OrderBy[0].Attr.Qualified())

	counts, err := cat.Entry("StatusCounts")
	require.NoError(t, err)
	assert.Equal(t, criteria.SelectFields, counts.Template.SelectType())
	require.Len(t, counts.Options.OrderBy, 1)
	assert.Equal(t, "users.status", counts.Options.OrderBy[0].Attr.Qualified())

	schemas := cat.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "Account", schemas[0].Name)

	zone, ok := cat.Schema("Zone")
	require.True(t, ok)
	assert.Equal(t, "zones", zone.Table)
}

func TestBuild_ExplicitOrderWins(t *testing.T) {
	templates := testTemplates()
	templates[2].OrderBy = []ir.OrderSpec{{Field: "name", Desc: true}}

	cat, err := Build(testSchemas(), templates)
	require.NoError(t, err)

	zones, err := cat.Entry("Zones")
	require.NoError(t, err)
	require.Len(t, zones.Options.OrderBy, 1)
	assert.Equal(t, querysql.Order{Attr: zones.Options.OrderBy[0].Attr, Desc: true}, zones.Options.OrderBy[0])
	assert.Equal(t, "zones.name", zones.Options.OrderBy[0].Attr.Qualified())
}

func TestBuild_InvalidSpecs(t *testing.T) {
	templates := testTemplates()
	templates[0].Conditions[0].Field = "shoeSize"

	_, err := Build(testSchemas(), templates)
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	require.Len(t, buildErr.Errors, 1)
	assert.Equal(t, compiler.ErrUnknownField, buildErr.Errors[0].Code)
	assert.Contains(t, err.Error(), "shoeSize")
}

func TestBuild_JoinCycle(t *testing.T) {
	templates := testTemplates()
	templates[2].Joins = []ir.JoinSpec{{Name: "back", Template: "Accounts", Local: "id", Remote: "zoneId"}}

	_, err := Build(testSchemas(), templates)
	require.Error(t, err)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, compiler.ErrJoinCycle, buildErr.Errors[0].Code)
}

func TestNew_UnknownTemplate(t *testing.T) {
	cat := buildCatalog(t)

	_, err := cat.New("Ghosts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))

	_, _, err = cat.Statement("Ghosts", nil)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
}

func TestStatement_NoSteps(t *testing.T) {
	cat := buildCatalog(t)

	stmt, c, err := cat.Statement("Users", nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, usersFrom+" ORDER BY users.id COLLATE BINARY ASC LIMIT ?", stmt.SQL)
	assert.Equal(t, []any{int64(100)}, stmt.Args)
}

func TestStatement_AllStepKinds(t *testing.T) {
	cat := buildCatalog(t)

	steps := []ir.Step{
		{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
		{Action: ir.StepAnd, Field: "role", Op: "IN", Values: ir.IRArray{str("admin"), str("owner")}},
		{Action: ir.StepSet, Join: "account", Name: "state", Values: ir.IRArray{str("enabled")}},
		// zone is not an immediate join of Users; it is found below account.
		{Action: ir.StepSet, Join: "zone", Name: "name", Values: ir.IRArray{str("z1")}},
		{Action: ir.StepSub, Name: "either", Template: "Roles", Steps: []ir.Step{
			{Action: ir.StepSet, Name: "a", Values: ir.IRArray{str("admin")}},
			{Action: ir.StepSet, Name: "b", Values: ir.IRArray{str("owner")}},
		}},
	}

	stmt, c, err := cat.Statement("Users", steps)
	require.NoError(t, err)

	assert.Equal(t, usersFrom+
		" WHERE (users.status = ? AND (users.role = ? OR users.role = ?) AND users.role IN (?, ?))"+
		" AND (accounts.state = ?) AND (zones.name = ?)"+
		" ORDER BY users.id COLLATE BINARY ASC LIMIT ?", stmt.SQL)
	assert.Equal(t, []any{"active", "admin", "owner", "admin", "owner", "enabled", "z1", int64(100)}, stmt.Args)

	where, err := c.WhereClause()
	require.NoError(t, err)
	assert.Equal(t, "users.status = ? AND (users.role = ? OR users.role = ?) AND users.role IN (?, ?)", where)
}

func TestStatement_JoinAddAndClear(t *testing.T) {
	cat := buildCatalog(t)

	steps := []ir.Step{
		{Action: ir.StepOr, Join: "account", Field: "state", Op: "NEQ", Values: ir.IRArray{str("removed")}},
		{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
		{Action: ir.StepClear, Name: "status"},
		{Action: ir.StepAnd, Join: "zone", Field: "name", Op: "LIKE", Values: ir.IRArray{str("us-%")}},
	}

	stmt, _, err := cat.Statement("Users", steps)
	require.NoError(t, err)
	assert.Equal(t, usersFrom+
		" WHERE (accounts.state != ?) AND (zones.name LIKE ?)"+
		" ORDER BY users.id COLLATE BINARY ASC LIMIT ?", stmt.SQL)
	assert.Equal(t, []any{"removed", "us-%", int64(100)}, stmt.Args)
}

func TestStatement_GroupByValues(t *testing.T) {
	cat := buildCatalog(t)

	steps := []ir.Step{{Action: ir.StepGroupBy, Values: ir.IRArray{ir.IRInt(1)}}}
	stmt, _, err := cat.Statement("StatusCounts", steps)
	require.NoError(t, err)

	assert.Equal(t, "SELECT users.status, COUNT(*) FROM users"+
		" GROUP BY users.status HAVING COUNT(*) > ?"+
		" ORDER BY users.status COLLATE BINARY ASC", stmt.SQL)
	assert.Equal(t, []any{int64(1)}, stmt.Args)
	assert.Equal(t, criteria.SelectFields, stmt.SelectType)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		steps   []ir.Step
		check   func(error) bool
		message string
	}{
		{
			name:    "unknown condition",
			steps:   []ir.Step{{Action: ir.StepSet, Name: "nope", Values: ir.IRArray{str("x")}}},
			check:   criteria.IsUnknownCondition,
			message: "step 0 (set)",
		},
		{
			name:    "unknown join",
			steps:   []ir.Step{{Action: ir.StepSet, Join: "ghost", Name: "x"}},
			check:   criteria.IsUnknownJoin,
			message: "step 0 (set)",
		},
		{
			name:    "unknown field",
			steps:   []ir.Step{{Action: ir.StepAnd, Field: "shoeSize", Op: "EQ", Values: ir.IRArray{ir.IRInt(42)}}},
			check:   criteria.IsUnknownField,
			message: "step 0 (and)",
		},
		{
			name: "group by without group-by",
			steps: []ir.Step{
				{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
				{Action: ir.StepGroupBy, Values: ir.IRArray{ir.IRInt(1)}},
			},
			check:   func(err error) bool { return criteria.Code(err) == criteria.ErrCodeNoGroupBy },
			message: "step 1 (group_by)",
		},
		{
			name:    "malformed step",
			steps:   []ir.Step{{Action: "frobnicate"}},
			check:   func(err error) bool { return err != nil },
			message: "step 0: action",
		},
		{
			name:    "unknown operator",
			steps:   []ir.Step{{Action: ir.StepOr, Field: "status", Op: "APPROX"}},
			check:   func(err error) bool { return err != nil },
			message: "unknown operator",
		},
		{
			name: "sub with unknown template",
			steps: []ir.Step{
				{Action: ir.StepSub, Name: "either", Template: "Ghosts"},
			},
			check:   func(err error) bool { return errors.Is(err, ErrUnknownTemplate) },
			message: "step 0 (sub)",
		},
		{
			name: "sub over another schema",
			steps: []ir.Step{
				{Action: ir.StepSub, Name: "either", Template: "Accounts", Steps: []ir.Step{
					{Action: ir.StepSet, Name: "state", Values: ir.IRArray{str("enabled")}},
				}},
			},
			check:   func(err error) bool { return criteria.Code(err) == criteria.ErrCodeInvalidCondition },
			message: "step 0 (sub)",
		},
		{
			name: "nested sub step failure",
			steps: []ir.Step{
				{Action: ir.StepSub, Name: "either", Template: "Roles", Steps: []ir.Step{
					{Action: ir.StepSet, Name: "c"},
				}},
			},
			check:   criteria.IsUnknownCondition,
			message: "sub either: step 0 (set)",
		},
	}

	cat := buildCatalog(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := cat.New("Users")
			require.NoError(t, err)

			err = cat.Apply(c, tt.steps)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Contains(t, err.Error(), tt.message)

			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr))
		})
	}
}

func TestApply_StepErrorIndex(t *testing.T) {
	cat := buildCatalog(t)
	c, err := cat.New("Users")
	require.NoError(t, err)

	err = cat.Apply(c, []ir.Step{
		{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
		{Action: ir.StepAnd, Field: "status", Op: "APPROX"},
	})
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, ir.StepAnd, stepErr.Action)
	assert.EqualError(t, err, `step 1 (and): unknown operator "APPROX"`)
}

func TestApply_SubCriteriaCycleRejected(t *testing.T) {
	cat := buildCatalog(t)
	c, err := cat.New("Users")
	require.NoError(t, err)

	// A criteria cannot be bound into itself.
	err = c.SetParameters("either", c)
	require.Error(t, err)
	assert.Equal(t, criteria.ErrCodeCycle, criteria.Code(err))
}

func TestCatalog_ConcurrentStatements(t *testing.T) {
	cat := buildCatalog(t)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, _, err := cat.Statement("Users", []ir.Step{
				{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
			})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}

func TestStatement_SubWithJoinFilterRejected(t *testing.T) {
	cat := buildCatalog(t)

	steps := []ir.Step{
		{Action: ir.StepSub, Name: "either", Template: "Users", Steps: []ir.Step{
			{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
			{Action: ir.StepSet, Join: "zone", Name: "name", Values: ir.IRArray{str("eu")}},
		}},
	}

	_, _, err := cat.Statement("Users", steps)
	require.Error(t, err)
	assert.Equal(t, criteria.ErrCodeInvalidCondition, criteria.Code(err))

	// The same filter bound on the outer criteria is rendered.
	steps = []ir.Step{
		{Action: ir.StepSub, Name: "either", Template: "Users", Steps: []ir.Step{
			{Action: ir.StepSet, Name: "status", Values: ir.IRArray{str("active")}},
		}},
		{Action: ir.StepSet, Join: "zone", Name: "name", Values: ir.IRArray{str("eu")}},
	}
	stmt, _, err := cat.Statement("Users", steps)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, " WHERE ((users.status = ?)) AND (zones.name = ?)")
	assert.Equal(t, []any{"active", "eu", int64(100)}, stmt.Args)
}
