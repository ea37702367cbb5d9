package criteria

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func userSchema() *Schema {
	return NewSchema("User", "users", map[string]string{
		"id":          "id",
		"name":        "name",
		"status":      "status",
		"role":        "role",
		"createdDate": "created_date",
		"accountId":   "account_id",
		"age":         "age",
	})
}

func accountSchema() *Schema {
	return NewSchema("Account", "accounts", map[string]string{
		"id":       "id",
		"state":    "state",
		"regionId": "region_id",
	})
}

func regionSchema() *Schema {
	return NewSchema("Region", "regions", map[string]string{
		"id":     "id",
		"zoneId": "zone_id",
		"name":   "name",
	})
}

func zoneSchema() *Schema {
	return NewSchema("Zone", "zones", map[string]string{
		"id":   "id",
		"name": "name",
	})
}

// buildTemplate calls Done and fails the test on error.
func buildTemplate(t *testing.T, b *TemplateBuilder) *Template {
	t.Helper()
	tmpl, err := b.Done()
	require.NoError(t, err)
	return tmpl
}

// placeholderCount counts "?" markers in a compiled clause.
func placeholderCount(sql string) int {
	return strings.Count(sql, "?")
}
