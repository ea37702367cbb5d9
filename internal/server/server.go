// Package server exposes a catalog over HTTP.
//
// Routes:
//
//	GET  /templates                 list templates
//	POST /templates/{name}/compile  apply steps, return the clause and statement
//	POST /templates/{name}/query    apply steps and execute the statement
//
// Request bodies carry a step list in the same form as scenario files:
//
//	{"steps": [{"action": "set", "name": "status", "values": ["active"]}]}
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/querysql"
	"github.com/roach88/criteria/internal/store"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Server serves one catalog. Query requests run against store.
type Server struct {
	catalog *catalog.Catalog
	store   *store.Store
	logger  *slog.Logger
	router  chi.Router
}

// New creates a server. st may be nil, in which case the query route
// answers 501.
func New(cat *catalog.Catalog, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{catalog: cat, store: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.listTemplates)
		r.Post("/{name}/compile", s.compileTemplate)
		r.Post("/{name}/query", s.queryTemplate)
	})
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// TemplateInfo describes a template in the listing.
type TemplateInfo struct {
	Name       string   `json:"name"`
	Schema     string   `json:"schema"`
	Table      string   `json:"table"`
	Conditions []string `json:"conditions"`
	Joins      []string `json:"joins"`
	GroupBy    bool     `json:"group_by,omitempty"`
}

// StepsRequest is the body of the compile and query routes.
type StepsRequest struct {
	Steps []ir.Step `json:"steps"`
}

// CompileResponse is the answer of the compile route.
type CompileResponse struct {
	Template string     `json:"template"`
	Where    string     `json:"where"`
	Values   ir.IRArray `json:"values"`
	SQL      string     `json:"sql"`
	Args     ir.IRArray `json:"args"`
}

// QueryResponse is the answer of the query route.
type QueryResponse struct {
	CompileResponse
	QueryID string        `json:"query_id"`
	Columns []string      `json:"columns"`
	Rows    []ir.IRObject `json:"rows"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	names := s.catalog.Names()
	out := make([]TemplateInfo, 0, len(names))
	for _, name := range names {
		e, err := s.catalog.Entry(name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		info := TemplateInfo{
			Name:       name,
			Schema:     e.Schema.Name,
			Table:      e.Schema.Table,
			Conditions: make([]string, 0, len(e.Spec.Conditions)),
			Joins:      make([]string, 0, len(e.Spec.Joins)),
			GroupBy:    e.Spec.GroupBy != nil,
		}
		for _, c := range e.Spec.Conditions {
			info.Conditions = append(info.Conditions, c.Name)
		}
		for _, j := range e.Spec.Joins {
			info.Joins = append(info.Joins, j.Name)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) compileTemplate(w http.ResponseWriter, r *http.Request) {
	resp, _, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) queryTemplate(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "no database configured"})
		return
	}
	resp, stmt, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.store.Query(r.Context(), resp.Template, stmt)
	if err != nil {
		s.logger.Error("query failed", "template", resp.Template, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		CompileResponse: *resp,
		QueryID:         res.QueryID,
		Columns:         res.Columns,
		Rows:            res.Rows,
	})
}

// compile decodes the request steps and assembles the statement of the
// template named in the URL.
func (s *Server) compile(w http.ResponseWriter, r *http.Request) (*CompileResponse, querysql.Statement, error) {
	name := chi.URLParam(r, "name")

	var req StepsRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, querysql.Statement{}, &requestError{fmt.Errorf("invalid request body: %w", err)}
	}

	stmt, c, err := s.catalog.Statement(name, req.Steps)
	if err != nil {
		return nil, querysql.Statement{}, err
	}
	clause, err := c.Compile()
	if err != nil {
		return nil, querysql.Statement{}, err
	}

	resp := &CompileResponse{Template: name, Where: clause.SQL, SQL: stmt.SQL}
	if resp.Values, err = ir.FromGoSlice(clause.Values); err != nil {
		return nil, querysql.Statement{}, err
	}
	if resp.Args, err = ir.FromGoSlice(stmt.Args); err != nil {
		return nil, querysql.Statement{}, err
	}
	return resp, stmt, nil
}

// requestError marks a malformed request.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// writeError maps err to a status code: unknown templates are 404,
// malformed requests, failed steps and criteria errors 400.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	resp.Code = string(criteria.Code(err))

	var reqErr *requestError
	var stepErr *catalog.StepError
	switch {
	case errors.Is(err, catalog.ErrUnknownTemplate):
		status = http.StatusNotFound
	case errors.As(err, &reqErr), errors.As(err, &stepErr), resp.Code != "":
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

// logRequests logs one line per request at Info.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
