package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/store"
	"github.com/roach88/criteria/internal/testutil"
)

func setupServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()

	specs, errs := compiler.LoadDir("../../testdata/specs", true)
	require.Empty(t, errs)
	cat, err := catalog.Build(specs.Schemas, specs.Templates)
	require.NoError(t, err)

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDGenerator("query")),
		store.WithClock(testutil.NewClock()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Load(context.Background(), cat.Schemas(), map[string][]ir.IRObject{
		"User": {
			{"id": ir.IRInt(1), "name": ir.IRString("ada"), "status": ir.IRString("active"), "age": ir.IRInt(36)},
			{"id": ir.IRInt(2), "name": ir.IRString("bob"), "status": ir.IRString("banned"), "age": ir.IRInt(17)},
		},
	}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return New(cat, st, logger), &logs
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListTemplates(t *testing.T) {
	s, _ := setupServer(t)

	rec := do(t, s, http.MethodGet, "/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []TemplateInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 5)

	names := make([]string, len(got))
	for i, info := range got {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"Accounts", "StatusCounts", "UserNames", "Users", "Zones"}, names)

	users := got[3]
	assert.Equal(t, "User", users.Schema)
	assert.Equal(t, "users", users.Table)
	assert.Equal(t, []string{"status", "minAge", "names", "either"}, users.Conditions)
	assert.Equal(t, []string{"account"}, users.Joins)
	assert.True(t, got[1].GroupBy)
}

func TestCompileTemplate(t *testing.T) {
	s, _ := setupServer(t)

	rec := do(t, s, http.MethodPost, "/templates/UserNames/compile",
		`{"steps": [{"action": "set", "name": "status", "values": ["active"]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{
		"template": "UserNames",
		"where": "users.status = ?",
		"values": ["active"],
		"sql": "SELECT users.name FROM users WHERE users.status = ? ORDER BY users.name COLLATE BINARY DESC LIMIT ?",
		"args": ["active", 2]
	}`, rec.Body.String())
}

func TestCompileTemplate_EmptyBody(t *testing.T) {
	s, _ := setupServer(t)

	rec := do(t, s, http.MethodPost, "/templates/Zones/compile", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "", resp.Where)
	assert.Equal(t, "SELECT zones.* FROM zones ORDER BY zones.id COLLATE BINARY ASC", resp.SQL)
}

func TestQueryTemplate(t *testing.T) {
	s, logs := setupServer(t)

	rec := do(t, s, http.MethodPost, "/templates/UserNames/query",
		`{"steps": [{"action": "set", "name": "status", "values": ["active"]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "query-0001", resp.QueryID)
	assert.Equal(t, []string{"name"}, resp.Columns)
	assert.Equal(t, []ir.IRObject{{"name": ir.IRString("ada")}}, resp.Rows)
	assert.Equal(t, ir.IRArray{ir.IRString("active"), ir.IRInt(2)}, resp.Args)

	assert.Contains(t, logs.String(), "msg=request")
	assert.Contains(t, logs.String(), "path=/templates/UserNames/query")
	assert.Contains(t, logs.String(), "status=200")
}

func TestQueryTemplate_NoStore(t *testing.T) {
	s, _ := setupServer(t)
	s = New(s.catalog, nil, nil)

	rec := do(t, s, http.MethodPost, "/templates/Users/query", `{}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
		errMsg string
	}{
		{
			name:   "unknown template",
			path:   "/templates/Ghosts/compile",
			body:   `{}`,
			status: http.StatusNotFound,
			errMsg: `unknown template "Ghosts"`,
		},
		{
			name:   "malformed body",
			path:   "/templates/Users/compile",
			body:   `{"steps": [`,
			status: http.StatusBadRequest,
			errMsg: "invalid request body",
		},
		{
			name:   "unknown field",
			path:   "/templates/Users/compile",
			body:   `{"steps": [{"action": "and", "field": "shoeSize", "op": "EQ", "values": [42]}]}`,
			status: http.StatusBadRequest,
			code:   "UNKNOWN_FIELD",
			errMsg: `step 0 (and): UNKNOWN_FIELD`,
		},
		{
			name:   "unknown operator",
			path:   "/templates/Users/query",
			body:   `{"steps": [{"action": "and", "field": "age", "op": "APPROX", "values": [1]}]}`,
			status: http.StatusBadRequest,
			errMsg: `unknown operator "APPROX"`,
		},
		{
			name:   "malformed step",
			path:   "/templates/Users/compile",
			body:   `{"steps": [{"action": "set"}]}`,
			status: http.StatusBadRequest,
			errMsg: "step 0: name",
		},
		{
			name:   "group by values without group by",
			path:   "/templates/Users/compile",
			body:   `{"steps": [{"action": "group_by", "values": [1]}]}`,
			status: http.StatusBadRequest,
			code:   "NO_GROUP_BY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupServer(t)

			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Contains(t, resp.Error, tt.errMsg)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupServer(t)
	rec := do(t, s, http.MethodGet, "/templates/Users/compile", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
