package criteria

import "strconv"

// Criteria is the mutable predicate state of one query invocation. It is
// created by Template.New, mutated by the caller and then compiled.
//
// The fixed conditions, projection and group-by descriptor belong to the
// shared template. The additional conditions, parameter table, joins and
// group-by values belong to this instance.
type Criteria struct {
	tmpl *Template

	// additional holds conditions appended after construction; they are
	// always emitted after the template's fixed conditions.
	additional []*Condition
	extra      map[string]*Condition

	// params maps a condition name to its bound values. Presence of the key
	// is what makes a condition bound.
	params map[string][]any

	// counter generates names for AddAnd/AddOr conditions.
	counter int

	joins         []*Join
	groupByValues []any

	// parent is the criteria whose join owns this one.
	parent *Criteria
}

// Template returns the template this criteria was created from.
func (c *Criteria) Template() *Template { return c.tmpl }

// Table returns the root table of the criteria's registry.
func (c *Criteria) Table() string { return c.tmpl.registry.Table() }

// SelectType returns the result shape the executor should produce.
func (c *Criteria) SelectType() SelectType { return c.tmpl.selectType }

// condition finds a condition by name in the fixed then additional list.
func (c *Criteria) condition(name string) (*Condition, bool) {
	if cond, ok := c.tmpl.names[name]; ok {
		return cond, true
	}
	cond, ok := c.extra[name]
	return cond, ok
}

// Conditions returns the fixed conditions followed by the additional ones,
// in emission order.
func (c *Criteria) Conditions() []*Condition {
	out := make([]*Condition, 0, len(c.tmpl.conditions)+len(c.additional))
	out = append(out, c.tmpl.conditions...)
	return append(out, c.additional...)
}

// Parameters returns the values bound to a condition and whether any binding
// exists.
func (c *Criteria) Parameters(name string) ([]any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// AddCondition appends a condition on a field resolved through the registry.
func (c *Criteria) AddCondition(name string, conj Conjunction, field string, op Op) error {
	if op == OpSC {
		return c.AddConditionAttr(name, conj, nil, op)
	}
	attr, ok := c.tmpl.registry.Attribute(field)
	if !ok {
		return newError(ErrCodeUnknownField, field, "unable to find field in %s", c.Table())
	}
	return c.AddConditionAttr(name, conj, attr, op)
}

// AddConditionAttr appends a condition on an attribute the caller already
// holds. attr may be nil only for OpSC.
func (c *Criteria) AddConditionAttr(name string, conj Conjunction, attr *Attribute, op Op) error {
	if _, exists := c.condition(name); exists {
		return newError(ErrCodeDuplicateName, name, "condition already defined")
	}
	cond, err := newCondition(name, conj, attr, op)
	if err != nil {
		return err
	}
	c.additional = append(c.additional, cond)
	c.extra[name] = cond
	return nil
}

// AddAnd appends "AND field op values" under a generated name.
func (c *Criteria) AddAnd(field string, op Op, values ...any) error {
	return c.add(ConjAnd, field, op, values)
}

// AddOr appends "OR field op values" under a generated name.
func (c *Criteria) AddOr(field string, op Op, values ...any) error {
	return c.add(ConjOr, field, op, values)
}

// AddAndAttr is AddAnd for an attribute the caller already holds.
func (c *Criteria) AddAndAttr(attr *Attribute, op Op, values ...any) error {
	return c.addAttr(ConjAnd, attr, op, values)
}

// AddOrAttr is AddOr for an attribute the caller already holds.
func (c *Criteria) AddOrAttr(attr *Attribute, op Op, values ...any) error {
	return c.addAttr(ConjOr, attr, op, values)
}

func (c *Criteria) add(conj Conjunction, field string, op Op, values []any) error {
	name := c.nextName()
	if err := c.AddCondition(name, conj, field, op); err != nil {
		return err
	}
	return c.bindOrDrop(name, values)
}

func (c *Criteria) addAttr(conj Conjunction, attr *Attribute, op Op, values []any) error {
	name := c.nextName()
	if err := c.AddConditionAttr(name, conj, attr, op); err != nil {
		return err
	}
	return c.bindOrDrop(name, values)
}

// bindOrDrop binds values to the condition just appended under name and
// removes that condition again if the binding is rejected.
func (c *Criteria) bindOrDrop(name string, values []any) error {
	if err := c.SetParameters(name, values...); err != nil {
		c.additional = c.additional[:len(c.additional)-1]
		delete(c.extra, name)
		return err
	}
	return nil
}

func (c *Criteria) nextName() string {
	name := GeneratedPrefix + strconv.Itoa(c.counter)
	c.counter++
	return name
}

// SetParameters binds values to an existing condition, replacing any
// earlier binding. Binding zero values still counts as bound.
func (c *Criteria) SetParameters(name string, values ...any) error {
	cond, ok := c.condition(name)
	if !ok {
		return newError(ErrCodeUnknownCondition, name, "couldn't find condition")
	}
	if cond.Op == OpSC {
		for _, v := range values {
			sub, isCriteria := v.(*Criteria)
			if !isCriteria || sub == nil {
				return newError(ErrCodeMissingSubcriteria, name, "sub-criteria value must be a *Criteria, got %T", v)
			}
			for anc := c; anc != nil; anc = anc.parent {
				if sub.reaches(anc) {
					return newError(ErrCodeCycle, name, "sub-criteria would contain its own parent")
				}
			}
			if sub.Table() != c.Table() {
				return newError(ErrCodeInvalidCondition, name, "sub-criteria over %s cannot filter %s", sub.Table(), c.Table())
			}
		}
	}
	if values == nil {
		values = []any{}
	}
	c.params[name] = values
	return nil
}

// ClearParameters removes the binding of a condition so that it is skipped
// again (arity-0 conditions are unaffected).
func (c *Criteria) ClearParameters(name string) error {
	if _, ok := c.condition(name); !ok {
		return newError(ErrCodeUnknownCondition, name, "couldn't find condition")
	}
	delete(c.params, name)
	return nil
}

// reaches reports whether target is c or can be reached from c through
// joins or bound sub-criteria.
func (c *Criteria) reaches(target *Criteria) bool {
	if c == target {
		return true
	}
	for _, j := range c.joins {
		if j.Criteria.reaches(target) {
			return true
		}
	}
	for _, values := range c.params {
		for _, v := range values {
			if sub, ok := v.(*Criteria); ok && sub.reaches(target) {
				return true
			}
		}
	}
	return false
}

// SetGroupByValues appends values that bind the group-by's HAVING
// placeholders.
func (c *Criteria) SetGroupByValues(values ...any) error {
	if c.tmpl.groupBy == nil {
		return newError(ErrCodeNoGroupBy, c.tmpl.name, "template has no group-by")
	}
	c.groupByValues = append(c.groupByValues, values...)
	return nil
}

// GroupBy returns the group-by descriptor and its bound values, or nil when
// the template does not group.
func (c *Criteria) GroupBy() (*GroupBy, []any) {
	if c.tmpl.groupBy == nil {
		return nil, nil
	}
	return c.tmpl.groupBy, append([]any(nil), c.groupByValues...)
}
