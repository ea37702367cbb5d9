package criteria

import (
	"reflect"
	"strings"
)

// GeneratedPrefix starts every condition name generated by AddAnd/AddOr.
// Template builders reject fixed names that start with it, so generated and
// fixed names never collide.
const GeneratedPrefix = "$"

// Condition is one named predicate. Its identity is Name; only the value
// binding, kept in the owning Criteria, changes after creation.
type Condition struct {
	Name        string
	Conjunction Conjunction
	// Attr is nil for OpSC conditions.
	Attr *Attribute
	Op   Op
}

// Is reports whether the condition carries the given name.
func (c *Condition) Is(name string) bool {
	return c.Name == name
}

func newCondition(name string, conj Conjunction, attr *Attribute, op Op) (*Condition, error) {
	if !op.Valid() {
		return nil, newError(ErrCodeInvalidCondition, name, "unknown operator %v", op)
	}
	if attr == nil && op != OpSC {
		return nil, newError(ErrCodeInvalidCondition, name, "operator %v needs an attribute", op)
	}
	return &Condition{Name: name, Conjunction: conj, Attr: attr, Op: op}, nil
}

// eligible reports whether the condition takes part in compilation:
// arity-0 operators always do, every other operator only once bound.
func (c *Condition) eligible(bound bool) bool {
	return c.Op.Arity() == 0 || bound
}

// RenderPredicate renders "expr <op>" for the given values and returns the
// arguments its placeholders consume, in order. It is shared by WHERE
// conditions and HAVING clauses. OpSC is not accepted here.
func RenderPredicate(expr string, op Op, values []any) (string, []any, error) {
	if op.Arity() == ArityVariable {
		values = flatten(values)
	}

	switch op {
	case OpNull, OpNotNull:
		return expr + " " + op.Template(), nil, nil

	case OpEQ, OpNEQ:
		if err := checkArity(expr, op, values); err != nil {
			return "", nil, err
		}
		if isNil(values[0]) {
			if op == OpEQ {
				return expr + " " + OpNull.Template(), nil, nil
			}
			return expr + " " + OpNotNull.Template(), nil, nil
		}
		return expr + " " + op.Template(), values, nil

	case OpGT, OpGTEQ, OpLT, OpLTEQ, OpLike, OpNotLike, OpBetween, OpNotBetween, OpText:
		if err := checkArity(expr, op, values); err != nil {
			return "", nil, err
		}
		return expr + " " + op.Template(), values, nil

	case OpIn, OpNotIn:
		if len(values) == 0 {
			// An empty set matches nothing; its negation matches everything.
			if op == OpIn {
				return "1 = 0", nil, nil
			}
			return "1 = 1", nil, nil
		}
		list := "(" + placeholders(len(values)) + ")"
		return expr + " " + strings.Replace(op.Template(), "()", list, 1), values, nil

	case OpSC:
		return "", nil, newError(ErrCodeInvalidCondition, expr, "sub-criteria cannot be rendered as a predicate")

	default:
		return "", nil, newError(ErrCodeInvalidCondition, expr, "unknown operator %v", op)
	}
}

// isNil reports whether v is nil, including typed nils such as a nil
// *string stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func checkArity(expr string, op Op, values []any) error {
	if len(values) != op.Arity() {
		return newError(ErrCodeArityMismatch, expr, "%v takes %d value(s), got %d", op, op.Arity(), len(values))
	}
	return nil
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// flatten expands a single slice argument into its elements, so that
// AddAnd("role", OpIn, roles) behaves like AddAnd("role", OpIn, roles...).
// Byte slices are scalar values and are left alone.
func flatten(values []any) []any {
	if len(values) != 1 || values[0] == nil {
		return values
	}
	if _, isBytes := values[0].([]byte); isBytes {
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return values
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
