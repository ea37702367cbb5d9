package catalog

import (
	"fmt"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
)

// StepError reports the step of a step list that could not be applied.
type StepError struct {
	Index  int
	Action ir.StepAction // empty when the step itself is malformed
	Err    error
}

func (e *StepError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("step %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Apply replays steps onto c in order. It stops at the first failing step
// and reports it as a *StepError; steps before it stay applied.
//
// A step with Join targets that join. Immediate joins are tried first,
// then any join below c by name.
func (cat *Catalog) Apply(c *criteria.Criteria, steps []ir.Step) error {
	for i, s := range steps {
		if errs := s.Validate(); len(errs) > 0 {
			return &StepError{Index: i, Err: errs[0]}
		}
		if err := cat.applyStep(c, s); err != nil {
			return &StepError{Index: i, Action: s.Action, Err: err}
		}
	}
	return nil
}

func (cat *Catalog) applyStep(c *criteria.Criteria, s ir.Step) error {
	values, err := ir.ToParams(s.Values)
	if err != nil {
		return err
	}

	switch s.Action {
	case ir.StepSet:
		if s.Join != "" {
			err := c.SetJoinParameters(s.Join, s.Name, values...)
			if !criteria.IsUnknownJoin(err) {
				return err
			}
		}
		target, err := resolveTarget(c, s.Join)
		if err != nil {
			return err
		}
		return target.SetParameters(s.Name, values...)

	case ir.StepClear:
		target, err := resolveTarget(c, s.Join)
		if err != nil {
			return err
		}
		return target.ClearParameters(s.Name)

	case ir.StepAnd, ir.StepOr:
		op, err := criteria.ParseOp(s.Op)
		if err != nil {
			return err
		}
		if s.Join != "" {
			add := c.AddJoinAnd
			if s.Action == ir.StepOr {
				add = c.AddJoinOr
			}
			err := add(s.Join, s.Field, op, values...)
			if !criteria.IsUnknownJoin(err) {
				return err
			}
		}
		target, err := resolveTarget(c, s.Join)
		if err != nil {
			return err
		}
		if s.Action == ir.StepOr {
			return target.AddOr(s.Field, op, values...)
		}
		return target.AddAnd(s.Field, op, values...)

	case ir.StepGroupBy:
		target, err := resolveTarget(c, s.Join)
		if err != nil {
			return err
		}
		return target.SetGroupByValues(values...)

	case ir.StepSub:
		sub, err := cat.New(s.Template)
		if err != nil {
			return err
		}
		if err := cat.Apply(sub, s.Steps); err != nil {
			return fmt.Errorf("sub %s: %w", s.Name, err)
		}
		target, err := resolveTarget(c, s.Join)
		if err != nil {
			return err
		}
		return target.SetParameters(s.Name, sub)

	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
}

// resolveTarget resolves the criteria a step applies to: c itself, or the join
// named join anywhere below it.
func resolveTarget(c *criteria.Criteria, join string) (*criteria.Criteria, error) {
	if join == "" {
		return c, nil
	}
	return c.GetJoin(join)
}
