package criteria

import (
	"errors"
	"fmt"
	"strings"
)

// JoinType is the SQL join kind used for a named join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

// SQL returns the join keyword, e.g. "LEFT JOIN".
func (j JoinType) SQL() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	default:
		return "INNER JOIN"
	}
}

func (j JoinType) String() string {
	return strings.ToLower(strings.TrimSuffix(j.SQL(), " JOIN"))
}

// ParseJoinType resolves a join kind by name. The empty string is JoinInner.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inner":
		return JoinInner, nil
	case "left", "left_outer":
		return JoinLeft, nil
	case "right", "right_outer":
		return JoinRight, nil
	default:
		return 0, fmt.Errorf("unknown join type %q", s)
	}
}

// Select is one entry of a projection. A nil Attr targets "*" and ends the
// projection: entries after it are not rendered.
type Select struct {
	Func  Func
	Attr  *Attribute
	Field string
}

// GroupBy describes a GROUP BY over attributes of the root table, with an
// optional HAVING predicate whose placeholders are bound by the criteria's
// group-by values.
type GroupBy struct {
	Attrs  []*Attribute
	Having *Having
}

// Having is an aggregate predicate, e.g. COUNT(users.id) > ?.
type Having struct {
	Func Func
	// Attr is nil for COUNT(*).
	Attr *Attribute
	Op   Op
}

type joinTemplate struct {
	name   string
	tmpl   *Template
	local  *Attribute
	remote *Attribute
	kind   JoinType
}

// Template is the frozen shape of a query: its fixed conditions, joins,
// projection and grouping. It is never mutated after TemplateBuilder.Done
// and may be shared across goroutines.
type Template struct {
	name       string
	registry   Registry
	conditions []*Condition
	names      map[string]*Condition
	selects    []Select
	selectType SelectType
	groupBy    *GroupBy
	joins      []joinTemplate
}

// New creates a fresh Criteria for one query invocation. Every join gets its
// own child Criteria instantiated from the join's template.
func (t *Template) New() *Criteria {
	c := &Criteria{
		tmpl:   t,
		params: make(map[string][]any),
		extra:  make(map[string]*Condition),
	}
	if t.groupBy != nil {
		c.groupByValues = []any{}
	}
	for _, jt := range t.joins {
		child := jt.tmpl.New()
		child.parent = c
		c.joins = append(c.joins, &Join{
			Name:     jt.name,
			Criteria: child,
			Local:    jt.local,
			Remote:   jt.remote,
			Type:     jt.kind,
		})
	}
	return c
}

// Name returns the template's name (may be empty).
func (t *Template) Name() string { return t.name }

// Registry returns the registry the template resolves fields against.
func (t *Template) Registry() Registry { return t.registry }

// SelectType returns the result shape of criteria created from t.
func (t *Template) SelectType() SelectType { return t.selectType }

// Conditions returns the fixed conditions in emission order.
func (t *Template) Conditions() []*Condition {
	return append([]*Condition(nil), t.conditions...)
}

// JoinNames returns the immediate join names in declaration order.
func (t *Template) JoinNames() []string {
	names := make([]string, len(t.joins))
	for i, jt := range t.joins {
		names[i] = jt.name
	}
	return names
}

// TemplateBuilder assembles a Template. Methods record the first problem
// with each call and keep going; Done reports all of them.
//
// Example:
//
//	accounts, _ := criteria.NewTemplateBuilder(accountSchema).
//	    Where("state", "state", criteria.OpEQ).
//	    Done()
//	users, err := criteria.NewTemplateBuilder(userSchema).
//	    Where("status", "status", criteria.OpEQ).
//	    And("created", "createdDate", criteria.OpGTEQ).
//	    Join("account", accounts, "accountId", "id", criteria.JoinInner).
//	    Done()
type TemplateBuilder struct {
	t         *Template
	typeIsSet bool
	errs      []error
}

// NewTemplateBuilder starts a template resolving fields against reg.
func NewTemplateBuilder(reg Registry) *TemplateBuilder {
	return &TemplateBuilder{
		t: &Template{
			registry: reg,
			names:    make(map[string]*Condition),
		},
	}
}

// Named sets the template's name.
func (b *TemplateBuilder) Named(name string) *TemplateBuilder {
	b.t.name = name
	return b
}

// Where adds a fixed condition without conjunction.
func (b *TemplateBuilder) Where(name, field string, op Op) *TemplateBuilder {
	return b.Condition(name, ConjNone, field, op)
}

// And adds a fixed condition joined with AND.
func (b *TemplateBuilder) And(name, field string, op Op) *TemplateBuilder {
	return b.Condition(name, ConjAnd, field, op)
}

// Or adds a fixed condition joined with OR.
func (b *TemplateBuilder) Or(name, field string, op Op) *TemplateBuilder {
	return b.Condition(name, ConjOr, field, op)
}

// AndSub adds a sub-criteria slot joined with AND. Bind a *Criteria to it
// with SetParameters.
func (b *TemplateBuilder) AndSub(name string) *TemplateBuilder {
	return b.Condition(name, ConjAnd, "", OpSC)
}

// OrSub adds a sub-criteria slot joined with OR.
func (b *TemplateBuilder) OrSub(name string) *TemplateBuilder {
	return b.Condition(name, ConjOr, "", OpSC)
}

// Condition adds a fixed condition. field is ignored for OpSC.
func (b *TemplateBuilder) Condition(name string, conj Conjunction, field string, op Op) *TemplateBuilder {
	switch {
	case name == "":
		b.fail(newError(ErrCodeInvalidCondition, field, "condition name is required"))
		return b
	case strings.HasPrefix(name, GeneratedPrefix):
		b.fail(newError(ErrCodeReservedName, name, "condition names starting with %q are reserved", GeneratedPrefix))
		return b
	case b.t.names[name] != nil:
		b.fail(newError(ErrCodeDuplicateName, name, "condition already defined"))
		return b
	}

	var attr *Attribute
	if op != OpSC {
		a, ok := b.t.registry.Attribute(field)
		if !ok {
			b.fail(newError(ErrCodeUnknownField, field, "unable to find field in %s", b.t.registry.Table()))
			return b
		}
		attr = a
	}

	cond, err := newCondition(name, conj, attr, op)
	if err != nil {
		b.fail(err)
		return b
	}
	b.t.conditions = append(b.t.conditions, cond)
	b.t.names[name] = cond
	return b
}

// Select appends a projection entry. An empty field targets "*".
func (b *TemplateBuilder) Select(fn Func, field string) *TemplateBuilder {
	sel := Select{Func: fn, Field: field}
	if field != "" {
		a, ok := b.t.registry.Attribute(field)
		if !ok {
			b.fail(newError(ErrCodeUnknownField, field, "unable to find select field in %s", b.t.registry.Table()))
			return b
		}
		sel.Attr = a
	}
	b.t.selects = append(b.t.selects, sel)
	return b
}

// SelectType fixes the result shape. Without it a template with a
// projection is SelectFields and one without is SelectEntity.
func (b *TemplateBuilder) SelectType(st SelectType) *TemplateBuilder {
	b.t.selectType = st
	b.typeIsSet = true
	return b
}

// Join adds a named join to a frozen child template, matching localField of
// this template's registry with remoteField of the child's.
func (b *TemplateBuilder) Join(name string, child *Template, localField, remoteField string, kind JoinType) *TemplateBuilder {
	if child == nil {
		b.fail(newError(ErrCodeUnknownJoin, name, "join template is nil"))
		return b
	}
	for _, jt := range b.t.joins {
		if jt.name == name {
			b.fail(newError(ErrCodeDuplicateName, name, "join already defined"))
			return b
		}
	}
	local, ok := b.t.registry.Attribute(localField)
	if !ok {
		b.fail(newError(ErrCodeUnknownField, localField, "unable to find join field in %s", b.t.registry.Table()))
		return b
	}
	remote, ok := child.registry.Attribute(remoteField)
	if !ok {
		b.fail(newError(ErrCodeUnknownField, remoteField, "unable to find join field in %s", child.registry.Table()))
		return b
	}
	b.t.joins = append(b.t.joins, joinTemplate{name: name, tmpl: child, local: local, remote: remote, kind: kind})
	return b
}

// GroupBy groups results by the given fields.
func (b *TemplateBuilder) GroupBy(fields ...string) *TemplateBuilder {
	if b.t.groupBy == nil {
		b.t.groupBy = &GroupBy{}
	}
	for _, field := range fields {
		a, ok := b.t.registry.Attribute(field)
		if !ok {
			b.fail(newError(ErrCodeUnknownField, field, "unable to find group-by field in %s", b.t.registry.Table()))
			continue
		}
		b.t.groupBy.Attrs = append(b.t.groupBy.Attrs, a)
	}
	return b
}

// Having sets the group-by's HAVING predicate. An empty field targets "*".
func (b *TemplateBuilder) Having(fn Func, field string, op Op) *TemplateBuilder {
	if b.t.groupBy == nil {
		b.fail(newError(ErrCodeNoGroupBy, field, "having requires a group-by"))
		return b
	}
	if op == OpSC || !op.Valid() {
		b.fail(newError(ErrCodeInvalidCondition, field, "operator %v cannot be used in having", op))
		return b
	}
	h := &Having{Func: fn, Op: op}
	if field != "" {
		a, ok := b.t.registry.Attribute(field)
		if !ok {
			b.fail(newError(ErrCodeUnknownField, field, "unable to find having field in %s", b.t.registry.Table()))
			return b
		}
		h.Attr = a
	}
	b.t.groupBy.Having = h
	return b
}

func (b *TemplateBuilder) fail(err error) {
	b.errs = append(b.errs, err)
}

// Done freezes and returns the template. The builder must not be used
// afterwards.
func (b *TemplateBuilder) Done() (*Template, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if !b.typeIsSet && len(b.t.selects) > 0 {
		b.t.selectType = SelectFields
	}
	t := b.t
	b.t = nil
	return t, nil
}
