package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/criteria/internal/ir"
)

// columnTypes maps field types to SQLite column types. BOOLEAN columns are
// scanned back as bool by the driver.
var columnTypes = map[string]string{
	"string": "TEXT",
	"int":    "INTEGER",
	"bool":   "BOOLEAN",
}

// CreateTable creates the table backing schema if it does not exist. Key
// fields form the primary key.
//
// The schema must have passed compiler validation: table and column names
// are spliced into the DDL.
func (s *Store) CreateTable(ctx context.Context, schema ir.SchemaSpec) error {
	var cols, keys []string
	for _, f := range schema.Fields {
		typ, ok := columnTypes[f.Type]
		if !ok {
			return fmt.Errorf("create table %s: field %s: unsupported type %q", schema.Table, f.Name, f.Type)
		}
		cols = append(cols, f.Column+" "+typ)
		if f.Key {
			keys = append(keys, f.Column)
		}
	}
	if len(keys) > 0 {
		cols = append(cols, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", schema.Table, strings.Join(cols, ", "))
	if err := s.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Table, err)
	}
	return nil
}

// Insert adds one row to the table backing schema. row is keyed by logical
// field name; missing fields are left NULL.
func (s *Store) Insert(ctx context.Context, schema ir.SchemaSpec, row ir.IRObject) error {
	columns := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		columns[f.Name] = f.Column
	}

	fields := row.SortedKeys()
	cols := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		col, ok := columns[field]
		if !ok {
			return fmt.Errorf("insert into %s: unknown field %q", schema.Table, field)
		}
		v, err := ir.ToParam(row[field])
		if err != nil {
			return fmt.Errorf("insert into %s: field %s: %w", schema.Table, field, err)
		}
		cols = append(cols, col)
		args = append(args, v)
	}
	if len(cols) == 0 {
		return fmt.Errorf("insert into %s: empty row", schema.Table)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if err := s.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", schema.Table, err)
	}
	return nil
}

// Load creates the tables of schemas and inserts rows, keyed by schema
// name. Schemas are processed in name order.
func (s *Store) Load(ctx context.Context, schemas []ir.SchemaSpec, rows map[string][]ir.IRObject) error {
	byName := make(map[string]ir.SchemaSpec, len(schemas))
	for _, schema := range schemas {
		byName[schema.Name] = schema
		if err := s.CreateTable(ctx, schema); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		schema, ok := byName[name]
		if !ok {
			return fmt.Errorf("fixtures for unknown schema %q", name)
		}
		for i, row := range rows[name] {
			if err := s.Insert(ctx, schema, row); err != nil {
				return fmt.Errorf("fixture %s[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}
