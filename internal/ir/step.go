package ir

import "fmt"

// StepAction names a criteria mutation.
type StepAction string

const (
	// StepSet binds Values to the condition Name.
	StepSet StepAction = "set"
	// StepClear removes the binding of the condition Name.
	StepClear StepAction = "clear"
	// StepAnd appends "AND Field Op Values".
	StepAnd StepAction = "and"
	// StepOr appends "OR Field Op Values".
	StepOr StepAction = "or"
	// StepGroupBy appends Values to the group-by values.
	StepGroupBy StepAction = "group_by"
	// StepSub builds a criteria from Template, applies Steps to it and binds
	// it to the sub-criteria condition Name.
	StepSub StepAction = "sub"
)

// Step is a serializable criteria mutation. The CLI, the HTTP API and test
// scenarios all describe caller mutations as a list of steps.
//
// When Join is set the step targets the named join instead of the root.
type Step struct {
	Action   StepAction `json:"action" yaml:"action"`
	Join     string     `json:"join,omitempty" yaml:"join,omitempty"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Field    string     `json:"field,omitempty" yaml:"field,omitempty"`
	Op       string     `json:"op,omitempty" yaml:"op,omitempty"`
	Values   IRArray    `json:"values,omitempty" yaml:"values,omitempty"`
	Template string     `json:"template,omitempty" yaml:"template,omitempty"`
	Steps    []Step     `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// ValidationError is a structural problem with a step.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the step's shape. Names, fields and operators are
// resolved later against a template. Returns all errors.
func (s Step) Validate() []ValidationError {
	var errs []ValidationError
	require := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("required for action %q", s.Action),
			})
		}
	}

	switch s.Action {
	case StepSet, StepClear:
		require("name", s.Name)
	case StepAnd, StepOr:
		require("field", s.Field)
		require("op", s.Op)
	case StepGroupBy:
		if len(s.Values) == 0 {
			errs = append(errs, ValidationError{Field: "values", Message: "group_by needs at least one value"})
		}
	case StepSub:
		require("name", s.Name)
		require("template", s.Template)
		for i, sub := range s.Steps {
			for _, e := range sub.Validate() {
				e.Field = fmt.Sprintf("steps[%d].%s", i, e.Field)
				errs = append(errs, e)
			}
		}
	case "":
		errs = append(errs, ValidationError{Field: "action", Message: "action is required"})
	default:
		errs = append(errs, ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("unknown action %q, must be one of: set, clear, and, or, group_by, sub", s.Action),
		})
	}

	if s.Action != StepSub && (s.Template != "" || len(s.Steps) > 0) {
		errs = append(errs, ValidationError{Field: "template", Message: "template and steps are only valid for action \"sub\""})
	}
	return errs
}
