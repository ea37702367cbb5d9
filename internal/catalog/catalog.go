// Package catalog links compiled schema and template specs into frozen
// criteria templates and turns step lists into executable statements.
//
// A Catalog is immutable once built and safe for concurrent use: every
// query gets its own *criteria.Criteria from Template.New.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/querysql"
)

// ErrUnknownTemplate is returned (wrapped) for template names the catalog
// does not define.
var ErrUnknownTemplate = errors.New("unknown template")

// BuildError collects the validation errors that prevented a build.
type BuildError struct {
	Errors []compiler.ValidationError
}

func (e *BuildError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid specs: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("invalid specs: %s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Entry is one linked template.
type Entry struct {
	Spec     ir.TemplateSpec
	Schema   ir.SchemaSpec
	Template *criteria.Template

	// Options holds the resolved ORDER BY and LIMIT of the spec.
	Options querysql.Options
}

// Catalog is a set of linked templates.
type Catalog struct {
	schemas map[string]ir.SchemaSpec
	entries map[string]*Entry
	names   []string
}

// Build validates the specs together and links every template. Templates
// are built after the templates they join, so each join points to a frozen
// child.
func Build(schemas []ir.SchemaSpec, templates []ir.TemplateSpec) (*Catalog, error) {
	if errs := compiler.ValidateCatalog(schemas, templates); len(errs) > 0 {
		return nil, &BuildError{Errors: errs}
	}
	order, err := compiler.JoinOrder(templates)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		schemas: make(map[string]ir.SchemaSpec, len(schemas)),
		entries: make(map[string]*Entry, len(templates)),
	}
	registries := make(map[string]*criteria.Schema, len(schemas))
	for _, s := range schemas {
		cat.schemas[s.Name] = s
		registries[s.Name] = newRegistry(s)
	}
	specs := make(map[string]ir.TemplateSpec, len(templates))
	for _, t := range templates {
		specs[t.Name] = t
	}

	for _, name := range order {
		spec := specs[name]
		schema := cat.schemas[spec.Schema]
		tmpl, err := cat.link(spec, registries[spec.Schema])
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		cat.entries[name] = &Entry{
			Spec:     spec,
			Schema:   schema,
			Template: tmpl,
			Options:  resolveOptions(spec, schema, tmpl, registries[spec.Schema]),
		}
		cat.names = append(cat.names, name)
	}
	sort.Strings(cat.names)
	return cat, nil
}

func newRegistry(s ir.SchemaSpec) *criteria.Schema {
	columns := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		columns[f.Name] = f.Column
	}
	return criteria.NewSchema(s.Name, s.Table, columns)
}

// link builds the criteria template for spec. Names and keywords were
// already validated; parse errors here are still reported, not ignored.
func (cat *Catalog) link(spec ir.TemplateSpec, reg *criteria.Schema) (*criteria.Template, error) {
	b := criteria.NewTemplateBuilder(reg).Named(spec.Name)

	for _, sel := range spec.Select {
		fn, err := criteria.ParseFunc(sel.Func)
		if err != nil {
			return nil, err
		}
		b.Select(fn, sel.Field)
	}
	if spec.SelectType != "" {
		st, err := criteria.ParseSelectType(spec.SelectType)
		if err != nil {
			return nil, err
		}
		b.SelectType(st)
	}

	for _, cond := range spec.Conditions {
		op, err := criteria.ParseOp(cond.Op)
		if err != nil {
			return nil, err
		}
		conj, err := criteria.ParseConjunction(cond.Conj)
		if err != nil {
			return nil, err
		}
		b.Condition(cond.Name, conj, cond.Field, op)
	}

	for _, j := range spec.Joins {
		child, ok := cat.entries[j.Template]
		if !ok {
			return nil, fmt.Errorf("join %s: %w %q", j.Name, ErrUnknownTemplate, j.Template)
		}
		kind, err := criteria.ParseJoinType(j.Type)
		if err != nil {
			return nil, err
		}
		b.Join(j.Name, child.Template, j.Local, j.Remote, kind)
	}

	if gb := spec.GroupBy; gb != nil {
		b.GroupBy(gb.Fields...)
		if h := gb.Having; h != nil {
			fn, err := criteria.ParseFunc(h.Func)
			if err != nil {
				return nil, err
			}
			op, err := criteria.ParseOp(h.Op)
			if err != nil {
				return nil, err
			}
			b.Having(fn, h.Field, op)
		}
	}
	return b.Done()
}

// resolveOptions turns order_by and limit into statement options. Without
// an explicit order, row-returning templates are ordered by their key
// fields, then grouped templates by their group-by fields, so results are
// deterministic.
func resolveOptions(spec ir.TemplateSpec, schema ir.SchemaSpec, tmpl *criteria.Template, reg *criteria.Schema) querysql.Options {
	opts := querysql.Options{Limit: spec.Limit}
	for _, o := range spec.OrderBy {
		opts.OrderBy = append(opts.OrderBy, querysql.Order{Attr: reg.MustAttribute(o.Field), Desc: o.Desc})
	}
	if len(opts.OrderBy) > 0 {
		return opts
	}

	switch {
	case spec.GroupBy != nil:
		for _, f := range spec.GroupBy.Fields {
			opts.OrderBy = append(opts.OrderBy, querysql.Order{Attr: reg.MustAttribute(f)})
		}
	case tmpl.SelectType() == criteria.SelectEntity:
		for _, f := range schema.Fields {
			if f.Key {
				opts.OrderBy = append(opts.OrderBy, querysql.Order{Attr: reg.MustAttribute(f.Name)})
			}
		}
	}
	return opts
}

// Names returns the template names in sorted order.
func (cat *Catalog) Names() []string {
	return append([]string(nil), cat.names...)
}

// Entry returns the linked template called name.
func (cat *Catalog) Entry(name string) (*Entry, error) {
	e, ok := cat.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTemplate, name)
	}
	return e, nil
}

// Schema returns the schema spec called name.
func (cat *Catalog) Schema(name string) (ir.SchemaSpec, bool) {
	s, ok := cat.schemas[name]
	return s, ok
}

// Schemas returns every schema spec, sorted by name.
func (cat *Catalog) Schemas() []ir.SchemaSpec {
	out := make([]ir.SchemaSpec, 0, len(cat.schemas))
	for _, s := range cat.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New creates a fresh criteria from the template called name.
func (cat *Catalog) New(name string) (*criteria.Criteria, error) {
	e, err := cat.Entry(name)
	if err != nil {
		return nil, err
	}
	return e.Template.New(), nil
}

// Statement creates a criteria from the template called name, applies
// steps to it and assembles the statement with the template's options.
// The criteria is returned as well so callers can inspect its WHERE clause.
func (cat *Catalog) Statement(name string, steps []ir.Step) (querysql.Statement, *criteria.Criteria, error) {
	e, err := cat.Entry(name)
	if err != nil {
		return querysql.Statement{}, nil, err
	}
	c := e.Template.New()
	if err := cat.Apply(c, steps); err != nil {
		return querysql.Statement{}, nil, err
	}
	stmt, err := querysql.Compile(c, e.Options)
	if err != nil {
		return querysql.Statement{}, nil, err
	}
	return stmt, c, nil
}
