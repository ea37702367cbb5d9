// Package querysql assembles complete SQL statements around compiled
// criteria: projection, joins, WHERE, GROUP BY/HAVING, ORDER BY and LIMIT.
//
// CRITICAL: All values are parameterized (never interpolated). Only table
// and column names, which come from validated schemas, are spliced into
// the SQL text.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
)

// Order is one ORDER BY term.
type Order struct {
	Attr *criteria.Attribute
	Desc bool
}

// Options carries the statement parts that are not part of a criteria tree.
type Options struct {
	// OrderBy terms, rendered with COLLATE BINARY for deterministic text
	// ordering across SQLite versions.
	OrderBy []Order

	// Limit caps the number of rows; 0 means no limit.
	Limit int64

	// Offset skips rows; 0 means none.
	Offset int64
}

// Statement is a complete parameterized SELECT.
type Statement struct {
	SQL        string
	Args       []any
	SelectType criteria.SelectType
}

// Compile assembles the statement for c.
//
// Layout:
//
//	SELECT <projection | root.*> FROM root
//	  [<kind> JOIN child ON parent.local = child.remote]...
//	  [WHERE (root clause) AND (join clause)...]
//	  [GROUP BY ... [HAVING ...]]
//	  [ORDER BY ...] [LIMIT ? [OFFSET ?]]
//
// Joins and their WHERE clauses are visited depth-first in declaration
// order, so placeholders and Args line up exactly.
func Compile(c *criteria.Criteria, opts Options) (Statement, error) {
	if c == nil {
		return Statement{}, fmt.Errorf("cannot compile nil criteria")
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return Statement{}, fmt.Errorf("limit and offset must not be negative (limit=%d, offset=%d)", opts.Limit, opts.Offset)
	}

	var b strings.Builder
	args := []any{}

	head, err := selectHead(c)
	if err != nil {
		return Statement{}, err
	}
	b.WriteString(head)
	writeJoins(&b, c)

	where, whereArgs, err := compileWhere(c)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = append(args, whereArgs...)
	}

	groupSQL, groupArgs, err := compileGroupBy(c)
	if err != nil {
		return Statement{}, err
	}
	b.WriteString(groupSQL)
	args = append(args, groupArgs...)

	if len(opts.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy(opts.OrderBy))
	}

	switch {
	case opts.Limit > 0 && opts.Offset > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, opts.Limit, opts.Offset)
	case opts.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		// SQLite only accepts OFFSET after LIMIT; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, opts.Offset)
	}

	return Statement{SQL: b.String(), Args: args, SelectType: c.SelectType()}, nil
}

// selectHead renders "SELECT <projection> FROM <table>". Without a
// projection every column of the root table is selected.
func selectHead(c *criteria.Criteria) (string, error) {
	table := c.Table()
	if c.IsSelectAll() {
		return "SELECT " + table + ".* FROM " + table, nil
	}
	const prefix = "SELECT "
	return c.InsertProjection(prefix+" FROM "+table, len(prefix))
}

func writeJoins(b *strings.Builder, c *criteria.Criteria) {
	for _, j := range c.Joins() {
		fmt.Fprintf(b, " %s %s ON %s = %s",
			j.Type.SQL(), j.Criteria.Table(), j.Local.Qualified(), j.Remote.Qualified())
		writeJoins(b, j.Criteria)
	}
}

// compileWhere combines the root clause with every join's clause. A single
// non-empty clause is used as is; several are parenthesized and ANDed.
func compileWhere(c *criteria.Criteria) (string, []any, error) {
	var parts []string
	args := []any{}

	var walk func(c *criteria.Criteria, path string) error
	walk = func(c *criteria.Criteria, path string) error {
		clause, err := c.Compile()
		if err != nil {
			if path != "" {
				return fmt.Errorf("join %s: %w", path, err)
			}
			return err
		}
		if !clause.Empty() {
			parts = append(parts, clause.SQL)
			args = append(args, clause.Values...)
		}
		for _, j := range c.Joins() {
			next := j.Name
			if path != "" {
				next = path + "." + j.Name
			}
			if err := walk(j.Criteria, next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(c, ""); err != nil {
		return "", nil, err
	}

	switch len(parts) {
	case 0:
		return "", args, nil
	case 1:
		return parts[0], args, nil
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, " AND "), args, nil
}

// compileGroupBy renders GROUP BY and, when its values are bound or its
// operator takes none, HAVING.
func compileGroupBy(c *criteria.Criteria) (string, []any, error) {
	gb, values := c.GroupBy()
	if gb == nil || len(gb.Attrs) == 0 {
		return "", nil, nil
	}

	cols := make([]string, len(gb.Attrs))
	for i, a := range gb.Attrs {
		cols[i] = a.Qualified()
	}
	sql := " GROUP BY " + strings.Join(cols, ", ")

	h := gb.Having
	if h == nil || (h.Op.Arity() != 0 && len(values) == 0) {
		return sql, nil, nil
	}
	pred, args, err := criteria.RenderPredicate(h.Func.Apply(h.Attr), h.Op, values)
	if err != nil {
		return "", nil, fmt.Errorf("having: %w", err)
	}
	return sql + " HAVING " + pred, args, nil
}

func orderBy(orders []Order) string {
	terms := make([]string, len(orders))
	for i, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = o.Attr.Qualified() + " COLLATE BINARY " + dir
	}
	return strings.Join(terms, ", ")
}
