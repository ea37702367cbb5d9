package criteria

// Join is a named child criteria over a related table, matched on
// Local = Remote. The child is exclusively owned by its parent.
type Join struct {
	Name     string
	Criteria *Criteria
	Local    *Attribute
	Remote   *Attribute
	Type     JoinType
}

// Joins returns the immediate joins in declaration order.
func (c *Criteria) Joins() []*Join {
	return append([]*Join(nil), c.joins...)
}

// immediateJoin looks a join up among c's direct joins only.
func (c *Criteria) immediateJoin(name string) (*Join, error) {
	for _, j := range c.joins {
		if j.Name == name {
			return j, nil
		}
	}
	return nil, newError(ErrCodeUnknownJoin, name, "incorrect join name specified")
}

// GetJoin resolves a join by name anywhere below c: the immediate joins
// first, then depth-first through each child's joins in declaration order.
// The first match wins.
func (c *Criteria) GetJoin(name string) (*Criteria, error) {
	if j := c.findJoin(name); j != nil {
		return j.Criteria, nil
	}
	return nil, newError(ErrCodeUnknownJoin, name, "unable to find a join by that name")
}

func (c *Criteria) findJoin(name string) *Join {
	for _, j := range c.joins {
		if j.Name == name {
			return j
		}
	}
	for _, j := range c.joins {
		if found := j.Criteria.findJoin(name); found != nil {
			return found
		}
	}
	return nil
}

// AddJoinAnd appends an AND condition to the immediate join joinName.
func (c *Criteria) AddJoinAnd(joinName, field string, op Op, values ...any) error {
	j, err := c.immediateJoin(joinName)
	if err != nil {
		return err
	}
	return j.Criteria.AddAnd(field, op, values...)
}

// AddJoinOr appends an OR condition to the immediate join joinName.
func (c *Criteria) AddJoinOr(joinName, field string, op Op, values ...any) error {
	j, err := c.immediateJoin(joinName)
	if err != nil {
		return err
	}
	return j.Criteria.AddOr(field, op, values...)
}

// SetJoinParameters binds values to a condition of the immediate join
// joinName.
func (c *Criteria) SetJoinParameters(joinName, conditionName string, values ...any) error {
	j, err := c.immediateJoin(joinName)
	if err != nil {
		return err
	}
	return j.Criteria.SetParameters(conditionName, values...)
}
