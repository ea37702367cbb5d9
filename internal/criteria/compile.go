package criteria

import (
	"strings"
)

// maxDepth bounds sub-criteria nesting during compilation.
const maxDepth = 32

// Clause is a compiled WHERE fragment (without the WHERE keyword) and the
// arguments for its placeholders, in order.
type Clause struct {
	SQL    string
	Values []any
}

// Empty reports whether no condition was emitted.
func (c Clause) Empty() bool {
	return c.SQL == ""
}

// fragment is one emitted condition: its predicate text and the arguments
// that predicate consumes.
type fragment struct {
	cond   *Condition
	sql    string
	values []any
}

// Compile renders the WHERE fragment and its arguments.
//
// Fixed conditions are visited in template order, then additional
// conditions in append order. A condition is emitted when its operator has
// arity 0 or a binding exists for its name. The first emitted condition
// carries no leading conjunction.
func (c *Criteria) Compile() (Clause, error) {
	return c.compile(0)
}

// WhereClause returns only the SQL of Compile.
func (c *Criteria) WhereClause() (string, error) {
	clause, err := c.Compile()
	return clause.SQL, err
}

// Values returns only the arguments of Compile.
func (c *Criteria) Values() ([]any, error) {
	clause, err := c.Compile()
	return clause.Values, err
}

func (c *Criteria) compile(depth int) (Clause, error) {
	frags, err := c.plan(depth)
	if err != nil {
		return Clause{}, err
	}

	var b strings.Builder
	values := []any{}
	for i, f := range frags {
		if i == 0 {
			b.WriteString(f.cond.Conjunction.prefix())
		} else {
			b.WriteString(f.cond.Conjunction.infix())
		}
		b.WriteString(f.sql)
		values = append(values, f.values...)
	}
	return Clause{SQL: b.String(), Values: values}, nil
}

// plan is the single traversal that decides which conditions are emitted
// and what each contributes. Both the SQL text and the argument list are
// built from its result.
func (c *Criteria) plan(depth int) ([]fragment, error) {
	if depth > maxDepth {
		return nil, newError(ErrCodeCycle, c.tmpl.name, "sub-criteria nested deeper than %d", maxDepth)
	}

	var frags []fragment
	for _, list := range [][]*Condition{c.tmpl.conditions, c.additional} {
		for _, cond := range list {
			values, bound := c.params[cond.Name]
			if !cond.eligible(bound) {
				continue
			}
			f, emit, err := c.render(cond, values, depth)
			if err != nil {
				return nil, err
			}
			if emit {
				frags = append(frags, f)
			}
		}
	}
	return frags, nil
}

// filtersJoins reports whether any join below c would emit a condition.
func (c *Criteria) filtersJoins(depth int) (bool, error) {
	for _, j := range c.joins {
		frags, err := j.Criteria.plan(depth)
		if err != nil {
			return false, err
		}
		if len(frags) > 0 {
			return true, nil
		}
		if filtered, err := j.Criteria.filtersJoins(depth + 1); filtered || err != nil {
			return filtered, err
		}
	}
	return false, nil
}

func (c *Criteria) render(cond *Condition, values []any, depth int) (fragment, bool, error) {
	if cond.Op == OpSC {
		if len(values) == 0 {
			return fragment{}, false, newError(ErrCodeMissingSubcriteria, cond.Name, "where's your search criteria object?")
		}
		sub, ok := values[0].(*Criteria)
		if !ok || sub == nil {
			return fragment{}, false, newError(ErrCodeMissingSubcriteria, cond.Name, "sub-criteria value must be a *Criteria, got %T", values[0])
		}
		inner, err := sub.compile(depth + 1)
		if err != nil {
			return fragment{}, false, err
		}
		filtered, err := sub.filtersJoins(depth + 1)
		if err != nil {
			return fragment{}, false, err
		}
		if filtered {
			return fragment{}, false, newError(ErrCodeInvalidCondition, cond.Name, "sub-criteria joins are not rendered; filter joins on the outer criteria")
		}
		if inner.Empty() {
			return fragment{}, false, nil
		}
		return fragment{cond: cond, sql: "(" + inner.SQL + ")", values: inner.Values}, true, nil
	}

	if cond.Op.Arity() == 0 {
		values = nil
	}
	sql, args, err := RenderPredicate(cond.Attr.Qualified(), cond.Op, values)
	if err != nil {
		if ce, ok := err.(*Error); ok {
			ce.Name = cond.Name
		}
		return fragment{}, false, err
	}
	return fragment{cond: cond, sql: sql, values: args}, true, nil
}
