package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// joinChain builds users -> account -> region -> zone.
func joinChain(t *testing.T) *Template {
	t.Helper()
	zones := buildTemplate(t, NewTemplateBuilder(zoneSchema()).Where("zoneName", "name", OpEQ))
	regions := buildTemplate(t, NewTemplateBuilder(regionSchema()).
		Join("zone", zones, "zoneId", "id", JoinInner))
	accounts := buildTemplate(t, NewTemplateBuilder(accountSchema()).
		Where("state", "state", OpEQ).
		Join("region", regions, "regionId", "id", JoinLeft))
	return buildTemplate(t, NewTemplateBuilder(userSchema()).
		Where("status", "status", OpEQ).
		Join("account", accounts, "accountId", "id", JoinInner))
}

func TestGetJoin_Immediate(t *testing.T) {
	c := joinChain(t).New()

	acct, err := c.GetJoin("account")
	require.NoError(t, err)
	assert.Equal(t, "accounts", acct.Table())
}

func TestGetJoin_Nested(t *testing.T) {
	c := joinChain(t).New()

	zone, err := c.GetJoin("zone")
	require.NoError(t, err)
	assert.Equal(t, "zones", zone.Table())

	// The resolved child is the live instance owned by the tree.
	require.NoError(t, zone.SetParameters("zoneName", "us-east"))
	region, err := c.GetJoin("region")
	require.NoError(t, err)
	again, err := region.GetJoin("zone")
	require.NoError(t, err)
	assert.Same(t, zone, again)

	values, err := again.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{"us-east"}, values)
}

func TestGetJoin_NotFound(t *testing.T) {
	c := joinChain(t).New()

	_, err := c.GetJoin("planet")
	require.Error(t, err)
	assert.True(t, IsUnknownJoin(err))

	// Lookups never go upward.
	acct, err := c.GetJoin("account")
	require.NoError(t, err)
	_, err = acct.GetJoin("account")
	assert.True(t, IsUnknownJoin(err))
}

func TestGetJoin_ImmediateWinsOverDeeper(t *testing.T) {
	regions := buildTemplate(t, NewTemplateBuilder(regionSchema()))
	mid := buildTemplate(t, NewTemplateBuilder(accountSchema()).
		Join("region", regions, "regionId", "id", JoinInner))

	root := buildTemplate(t, NewTemplateBuilder(userSchema()).
		Join("account", mid, "accountId", "id", JoinInner).
		Join("region", regions, "accountId", "id", JoinInner)).New()

	found, err := root.GetJoin("region")
	require.NoError(t, err)

	joins := root.Joins()
	require.Len(t, joins, 2)
	assert.Same(t, joins[1].Criteria, found)
}

func TestAddJoinAnd(t *testing.T) {
	c := joinChain(t).New()

	require.NoError(t, c.AddJoinAnd("account", "state", OpEQ, "enabled"))
	require.NoError(t, c.AddJoinOr("account", "id", OpIn, 1, 2))

	acct, err := c.GetJoin("account")
	require.NoError(t, err)
	clause, err := acct.Compile()
	require.NoError(t, err)
	assert.Equal(t, "accounts.state = ? OR accounts.id IN (?, ?)", clause.SQL)
	assert.Equal(t, []any{"enabled", 1, 2}, clause.Values)

	// The parent's own clause is untouched.
	root, err := c.Compile()
	require.NoError(t, err)
	assert.True(t, root.Empty())
}

func TestAddJoinAnd_OnlyImmediate(t *testing.T) {
	c := joinChain(t).New()

	err := c.AddJoinAnd("region", "name", OpEQ, "west")
	require.Error(t, err)
	assert.True(t, IsUnknownJoin(err))

	err = c.AddJoinOr("zone", "name", OpEQ, "west")
	assert.True(t, IsUnknownJoin(err))
}

func TestAddJoinAnd_UnknownField(t *testing.T) {
	c := joinChain(t).New()

	err := c.AddJoinAnd("account", "status", OpEQ, "x")
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
}

func TestSetJoinParameters(t *testing.T) {
	c := joinChain(t).New()

	require.NoError(t, c.SetJoinParameters("account", "state", "enabled"))

	acct, err := c.GetJoin("account")
	require.NoError(t, err)
	values, bound := acct.Parameters("state")
	assert.True(t, bound)
	assert.Equal(t, []any{"enabled"}, values)

	err = c.SetJoinParameters("account", "missing", 1)
	assert.True(t, IsUnknownCondition(err))

	err = c.SetJoinParameters("zone", "zoneName", "x")
	assert.True(t, IsUnknownJoin(err))
}

func TestJoins_Metadata(t *testing.T) {
	c := joinChain(t).New()

	joins := c.Joins()
	require.Len(t, joins, 1)
	j := joins[0]
	assert.Equal(t, "account", j.Name)
	assert.Equal(t, JoinInner, j.Type)
	assert.Equal(t, "users.account_id", j.Local.Qualified())
	assert.Equal(t, "accounts.id", j.Remote.Qualified())

	region, err := j.Criteria.GetJoin("region")
	require.NoError(t, err)
	assert.Equal(t, "regions", region.Table())
	assert.Equal(t, JoinLeft, j.Criteria.Joins()[0].Type)
}

func TestJoinType_Parse(t *testing.T) {
	testCases := []struct {
		in   string
		want JoinType
		sql  string
	}{
		{"", JoinInner, "INNER JOIN"},
		{"inner", JoinInner, "INNER JOIN"},
		{"LEFT", JoinLeft, "LEFT JOIN"},
		{"right_outer", JoinRight, "RIGHT JOIN"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseJoinType(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.sql, got.SQL())
		})
	}

	_, err := ParseJoinType("cross")
	assert.Error(t, err)
	assert.Equal(t, "left", JoinLeft.String())
}
