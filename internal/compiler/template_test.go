package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/ir"
)

func TestCompileTemplateFull(t *testing.T) {
	v := compileCUE(t, `
		template: UsersByStatus: {
			schema:      "User"
			select_type: "fields"
			select: [
				{field: "status"},
				{func: "COUNT"},
			]
			conditions: [
				{name: "status", field: "status", op: "EQ"},
				{name: "created", conj: "AND", field: "createdDate", op: "GTEQ"},
				{name: "either", conj: "OR", op: "SC"},
			]
			joins: [
				{name: "account", template: "Accounts", local: "accountId", remote: "id", type: "left"},
			]
			group_by: {
				fields: ["status"]
				having: {func: "COUNT", field: "id", op: "GT"}
			}
			order_by: [{field: "status"}, {field: "id", desc: true}]
			limit: 50
		}
	`, "template.UsersByStatus")

	spec, err := CompileTemplate(v)
	require.NoError(t, err)

	assert.Equal(t, &ir.TemplateSpec{
		Name:       "UsersByStatus",
		Schema:     "User",
		SelectType: "fields",
		Select: []ir.SelectSpec{
			{Field: "status"},
			{Func: "COUNT"},
		},
		Conditions: []ir.ConditionSpec{
			{Name: "status", Field: "status", Op: "EQ"},
			{Name: "created", Conj: "AND", Field: "createdDate", Op: "GTEQ"},
			{Name: "either", Conj: "OR", Op: "SC"},
		},
		Joins: []ir.JoinSpec{
			{Name: "account", Template: "Accounts", Local: "accountId", Remote: "id", Type: "left"},
		},
		GroupBy: &ir.GroupBySpec{
			Fields: []string{"status"},
			Having: &ir.HavingSpec{Func: "COUNT", Field: "id", Op: "GT"},
		},
		OrderBy: []ir.OrderSpec{{Field: "status"}, {Field: "id", Desc: true}},
		Limit:   50,
	}, spec)
}

func TestCompileTemplateMinimal(t *testing.T) {
	v := compileCUE(t, `
		template: AllUsers: { schema: "User" }
	`, "template.AllUsers")

	spec, err := CompileTemplate(v)
	require.NoError(t, err)
	assert.Equal(t, &ir.TemplateSpec{Name: "AllUsers", Schema: "User"}, spec)
}

func TestCompileTemplateMissingSchema(t *testing.T) {
	v := compileCUE(t, `
		template: Bad: { conditions: [] }
	`, "template.Bad")

	_, err := CompileTemplate(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema is required")
}

func TestCompileTemplateConditionNeedsOp(t *testing.T) {
	v := compileCUE(t, `
		template: Bad: {
			schema: "User"
			conditions: [{name: "status", field: "status"}]
		}
	`, "template.Bad")

	_, err := CompileTemplate(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op is required")
}

func TestCompileTemplateJoinNeedsRemote(t *testing.T) {
	v := compileCUE(t, `
		template: Bad: {
			schema: "User"
			joins: [{name: "a", template: "Accounts", local: "accountId"}]
		}
	`, "template.Bad")

	_, err := CompileTemplate(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote is required")
}

func TestCompileTemplateConditionsMustBeList(t *testing.T) {
	v := compileCUE(t, `
		template: Bad: {
			schema: "User"
			conditions: {status: "EQ"}
		}
	`, "template.Bad")

	_, err := CompileTemplate(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a list")
}
