package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/querysql"
)

// Result is the outcome of one executed statement.
type Result struct {
	QueryID string        `json:"query_id"`
	Columns []string      `json:"columns"`
	Rows    []ir.IRObject `json:"rows"`
}

// Scalar returns the first column of the first row, for single-value
// selects such as COUNT(*).
func (r Result) Scalar() (ir.IRValue, bool) {
	if len(r.Rows) == 0 || len(r.Columns) == 0 {
		return nil, false
	}
	v, ok := r.Rows[0][r.Columns[0]]
	return v, ok
}

// Query executes stmt, scans every row into an ir.IRObject keyed by column
// name and records the execution in the query log under template.
//
// Values that cannot be represented as IR values (non-integral floats)
// fail the query.
func (s *Store) Query(ctx context.Context, template string, stmt querysql.Statement) (Result, error) {
	args, err := ir.FromGoSlice(stmt.Args)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: args: %w", template, err)
	}

	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", template, err)
	}
	columns, objects, err := scanRows(rows)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", template, err)
	}

	rec := ir.QueryRecord{
		ID:       s.ids.Generate(),
		Seq:      s.seq.Next(),
		Template: template,
		SQL:      stmt.SQL,
		Args:     args,
		Rows:     int64(len(objects)),
	}
	if rec.Fingerprint, err = ir.StatementFingerprint(stmt.SQL, args); err != nil {
		return Result{}, fmt.Errorf("query %s: fingerprint: %w", template, err)
	}
	if err := s.writeQueryRecord(ctx, rec); err != nil {
		return Result{}, err
	}

	s.logger.Debug("query executed",
		"query_id", rec.ID,
		"seq", rec.Seq,
		"template", template,
		"fingerprint", rec.Fingerprint,
		"rows", rec.Rows)

	return Result{QueryID: rec.ID, Columns: columns, Rows: objects}, nil
}

// scanRows reads all rows and closes them.
func scanRows(rows *sql.Rows) ([]string, []ir.IRObject, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns: %w", err)
	}

	objects := []ir.IRObject{}
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}

		obj := make(ir.IRObject, len(columns))
		for i, col := range columns {
			v, err := ir.FromGo(raw[i])
			if err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", col, err)
			}
			obj[col] = v
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	return columns, objects, nil
}
