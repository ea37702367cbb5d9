package criteria

import (
	"fmt"
	"sort"
)

// Attribute describes the physical column behind a logical field.
// Attributes are owned by a Registry and referenced, never copied, by
// conditions and select lists.
type Attribute struct {
	Field  string
	Table  string
	Column string
}

// Qualified returns the "table.column" form used in SQL.
func (a *Attribute) Qualified() string {
	return a.Table + "." + a.Column
}

func (a *Attribute) String() string {
	return a.Field + "(" + a.Qualified() + ")"
}

// Registry resolves logical field names to attributes of one table.
type Registry interface {
	Table() string
	Attribute(field string) (*Attribute, bool)
}

// Schema is an immutable Registry built from a field → column map.
type Schema struct {
	name   string
	table  string
	attrs  map[string]*Attribute
	fields []string
}

// NewSchema builds a schema for table. columns maps logical field names to
// column names; an empty column name defaults to the field name.
func NewSchema(name, table string, columns map[string]string) *Schema {
	s := &Schema{
		name:  name,
		table: table,
		attrs: make(map[string]*Attribute, len(columns)),
	}
	for field, column := range columns {
		if column == "" {
			column = field
		}
		s.attrs[field] = &Attribute{Field: field, Table: table, Column: column}
		s.fields = append(s.fields, field)
	}
	sort.Strings(s.fields)
	return s
}

// Name returns the schema's logical name.
func (s *Schema) Name() string { return s.name }

// Table returns the physical table name.
func (s *Schema) Table() string { return s.table }

// Attribute looks up a field.
func (s *Schema) Attribute(field string) (*Attribute, bool) {
	a, ok := s.attrs[field]
	return a, ok
}

// MustAttribute is like Attribute but panics when the field is unknown.
// Use only in tests or when the field is known to exist.
func (s *Schema) MustAttribute(field string) *Attribute {
	a, ok := s.attrs[field]
	if !ok {
		panic(fmt.Sprintf("schema %s: unknown field %q", s.name, field))
	}
	return a
}

// Fields returns the field names in sorted order.
func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}
