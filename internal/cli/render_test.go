package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersBase = "SELECT users.* FROM users INNER JOIN accounts ON users.account_id = accounts.id LEFT JOIN zones ON accounts.zone_id = zones.id"

func runCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--format", format}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRender_Text(t *testing.T) {
	out, err := runCommand(t, "text", "render", testSpecsDir, "Users",
		"--set", "status=active", "--and", "age:GTEQ:18")
	require.NoError(t, err)

	assert.Contains(t, out, "Template: Users\n")
	assert.Contains(t, out, "Where:    users.status = ? AND users.age >= ?\n")
	assert.Contains(t, out, `Values:   ["active",18]`)
	assert.Contains(t, out, "SQL:      "+usersBase+" WHERE users.status = ? AND users.age >= ? ORDER BY users.id COLLATE BINARY ASC\n")
	assert.Contains(t, out, `Args:     ["active",18]`)
}

func TestRender_JSON(t *testing.T) {
	out, err := runCommand(t, "json", "render", testSpecsDir, "Users",
		"--set", "account.state=enabled", "--set", "zone.name=us")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   RenderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Users", resp.Data.Template)
	assert.Equal(t, "", resp.Data.Where)
	assert.Equal(t,
		usersBase+" WHERE (accounts.state = ?) AND (zones.name = ?) ORDER BY users.id COLLATE BINARY ASC",
		resp.Data.SQL)
	assert.Len(t, resp.Data.Args, 2)
}

func TestRender_NoSteps(t *testing.T) {
	out, err := runCommand(t, "text", "render", testSpecsDir, "Zones")
	require.NoError(t, err)
	assert.Contains(t, out, "SQL:      SELECT zones.* FROM zones ORDER BY zones.id COLLATE BINARY ASC\n")
	assert.Contains(t, out, "Values:   []")
}

func TestRender_CriteriaError(t *testing.T) {
	out, err := runCommand(t, "json", "render", testSpecsDir, "Users", "--and", "shoeSize:EQ:42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCriteria, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "shoeSize")
	assert.Equal(t, map[string]any{"criteria_code": "UNKNOWN_FIELD"}, resp.Error.Details)
}

func TestRender_UnknownTemplate(t *testing.T) {
	out, err := runCommand(t, "text", "render", testSpecsDir, "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E010]")
	assert.Contains(t, out, "unknown template")
}

func TestRender_BadFlag(t *testing.T) {
	_, err := runCommand(t, "text", "render", testSpecsDir, "Users", "--set", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected [join.]name=values")
}

func TestRender_MissingStepsFile(t *testing.T) {
	out, err := runCommand(t, "text", "render", testSpecsDir, "Users", "--steps", "/nonexistent/steps.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E008]")
}

func TestRender_BadSpecsDir(t *testing.T) {
	out, err := runCommand(t, "text", "render", "/nonexistent/specs", "Users")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
