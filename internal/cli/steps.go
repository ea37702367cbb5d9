package cli

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/criteria/internal/ir"
)

// StepOptions holds the step flags shared by render and query.
type StepOptions struct {
	StepsFile string    // YAML list of steps, applied before the flags
	Steps     []ir.Step // steps from --set, --clear, --and, --or, --group-by in order
}

// stepFlag appends one step per occurrence to a list shared by every step
// flag, so the steps keep their command-line order across flags.
type stepFlag struct {
	action ir.StepAction
	steps  *[]ir.Step
}

func (f *stepFlag) String() string { return "" }
func (f *stepFlag) Type() string   { return "step" }

func (f *stepFlag) Set(s string) error {
	step, err := parseStep(f.action, s)
	if err != nil {
		return err
	}
	*f.steps = append(*f.steps, step)
	return nil
}

// addStepFlags registers the step flags on cmd.
func addStepFlags(cmd *cobra.Command, opts *StepOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.StepsFile, "steps", "", "YAML file with a list of steps")
	flags.Var(&stepFlag{ir.StepSet, &opts.Steps}, "set", "bind a condition: [join.]name=v1,v2")
	flags.Var(&stepFlag{ir.StepClear, &opts.Steps}, "clear", "unbind a condition: [join.]name")
	flags.Var(&stepFlag{ir.StepAnd, &opts.Steps}, "and", "add a condition: [join.]field:OP[:v1,v2]")
	flags.Var(&stepFlag{ir.StepOr, &opts.Steps}, "or", "add an OR condition: [join.]field:OP[:v1,v2]")
	flags.Var(&stepFlag{ir.StepGroupBy, &opts.Steps}, "group-by", "bind group-by values: v1,v2")
}

// resolveSteps returns the steps file content followed by the flag steps.
func (o *StepOptions) resolveSteps() ([]ir.Step, error) {
	if o.StepsFile == "" {
		return o.Steps, nil
	}
	steps, err := loadStepsFile(o.StepsFile)
	if err != nil {
		return nil, err
	}
	return append(steps, o.Steps...), nil
}

// parseStep parses the value of a step flag.
func parseStep(action ir.StepAction, s string) (ir.Step, error) {
	step := ir.Step{Action: action}
	switch action {
	case ir.StepSet:
		target, values, ok := strings.Cut(s, "=")
		if !ok {
			return step, fmt.Errorf("expected [join.]name=values, got %q", s)
		}
		step.Join, step.Name = splitJoin(target)
		step.Values = parseValues(values)

	case ir.StepClear:
		step.Join, step.Name = splitJoin(s)

	case ir.StepAnd, ir.StepOr:
		parts := strings.SplitN(s, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return step, fmt.Errorf("expected [join.]field:OP[:values], got %q", s)
		}
		step.Join, step.Field = splitJoin(parts[0])
		step.Op = parts[1]
		if len(parts) == 3 {
			step.Values = parseValues(parts[2])
		}

	case ir.StepGroupBy:
		step.Values = parseValues(s)
	}

	if errs := step.Validate(); len(errs) > 0 {
		return step, errs[0]
	}
	return step, nil
}

// splitJoin splits "join.name" into its parts. A name without a dot
// targets the root criteria.
func splitJoin(s string) (join, name string) {
	if j, n, ok := strings.Cut(s, "."); ok {
		return j, n
	}
	return "", s
}

// parseValues splits a comma separated list. An empty string is an empty
// list, which binds a set operator to no values.
func parseValues(s string) ir.IRArray {
	if s == "" {
		return ir.IRArray{}
	}
	parts := strings.Split(s, ",")
	out := make(ir.IRArray, len(parts))
	for i, p := range parts {
		out[i] = parseValue(p)
	}
	return out
}

// parseValue reads null, booleans and integers; anything else is a string.
func parseValue(s string) ir.IRValue {
	switch s {
	case "null":
		return ir.IRNull{}
	case "true":
		return ir.IRBool(true)
	case "false":
		return ir.IRBool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.IRInt(n)
	}
	return ir.IRString(s)
}

// loadStepsFile reads a YAML list of steps.
func loadStepsFile(path string) ([]ir.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading steps file: %w", err)
	}
	var steps []ir.Step
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&steps); err != nil {
		return nil, fmt.Errorf("parsing steps file: %w", err)
	}
	for i, step := range steps {
		if errs := step.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("steps[%d].%w", i, errs[0])
		}
	}
	return steps, nil
}
