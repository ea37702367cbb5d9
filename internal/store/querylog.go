package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/criteria/internal/ir"
)

// writeQueryRecord appends rec to the query log. Args are stored as
// canonical JSON so that equal argument lists are byte-identical.
func (s *Store) writeQueryRecord(ctx context.Context, rec ir.QueryRecord) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("write query record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_log
		(id, seq, template, sql, args, fingerprint, row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Seq,
		rec.Template,
		rec.SQL,
		argsJSON,
		rec.Fingerprint,
		rec.Rows,
	)
	if err != nil {
		return fmt.Errorf("write query record: %w", err)
	}
	return nil
}

// ReadQueryLog returns every logged statement in seq order.
func (s *Store) ReadQueryLog(ctx context.Context) ([]ir.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, template, sql, args, fingerprint, row_count
		FROM query_log
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read query log: %w", err)
	}
	return scanQueryRecords(rows)
}

// ReadQueryLogByTemplate returns the logged statements of one template in
// seq order.
func (s *Store) ReadQueryLogByTemplate(ctx context.Context, template string) ([]ir.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, template, sql, args, fingerprint, row_count
		FROM query_log
		WHERE template = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, template)
	if err != nil {
		return nil, fmt.Errorf("read query log for %s: %w", template, err)
	}
	return scanQueryRecords(rows)
}

func scanQueryRecords(rows *sql.Rows) ([]ir.QueryRecord, error) {
	defer rows.Close()

	records := []ir.QueryRecord{}
	for rows.Next() {
		var rec ir.QueryRecord
		var argsJSON string
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Template, &rec.SQL, &argsJSON, &rec.Fingerprint, &rec.Rows); err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		args, err := unmarshalArgs(argsJSON)
		if err != nil {
			return nil, fmt.Errorf("query record %s: %w", rec.ID, err)
		}
		rec.Args = args
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read query log: %w", err)
	}
	return records, nil
}

// marshalArgs converts args to canonical JSON TEXT for storage.
func marshalArgs(args ir.IRArray) (string, error) {
	if args == nil {
		args = ir.IRArray{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back to an IRArray.
// Uses ir.UnmarshalIRValue which keeps large integers exact via
// json.Number.
func unmarshalArgs(data string) (ir.IRArray, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: expected array, got %T", v)
	}
	return arr, nil
}
