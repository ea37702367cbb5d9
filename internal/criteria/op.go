package criteria

import (
	"fmt"
	"strings"
)

// ArityVariable marks operators whose placeholder count is the number of
// bound values (set membership).
const ArityVariable = -1

// Op is a comparison operator applied to a condition's attribute.
type Op int

const (
	OpGT Op = iota + 1
	OpGTEQ
	OpLT
	OpLTEQ
	OpEQ
	OpNEQ
	OpBetween
	OpNotBetween
	OpIn
	OpNotIn
	OpLike
	OpNotLike
	OpNull
	OpNotNull
	// OpSC embeds a sub-criteria bound as the condition's single value.
	OpSC
	// OpText is a full-text match against the attribute.
	OpText
)

type opInfo struct {
	name     string
	template string
	arity    int
}

var ops = map[Op]opInfo{
	OpGT:         {"GT", "> ?", 1},
	OpGTEQ:       {"GTEQ", ">= ?", 1},
	OpLT:         {"LT", "< ?", 1},
	OpLTEQ:       {"LTEQ", "<= ?", 1},
	OpEQ:         {"EQ", "= ?", 1},
	OpNEQ:        {"NEQ", "!= ?", 1},
	OpBetween:    {"BETWEEN", "BETWEEN ? AND ?", 2},
	OpNotBetween: {"NBETWEEN", "NOT BETWEEN ? AND ?", 2},
	OpIn:         {"IN", "IN ()", ArityVariable},
	OpNotIn:      {"NOTIN", "NOT IN ()", ArityVariable},
	OpLike:       {"LIKE", "LIKE ?", 1},
	OpNotLike:    {"NLIKE", "NOT LIKE ?", 1},
	OpNull:       {"NULL", "IS NULL", 0},
	OpNotNull:    {"NNULL", "IS NOT NULL", 0},
	OpSC:         {"SC", "()", 1},
	OpText:       {"TEXT", "MATCH ?", 1},
}

// opAliases are extra spellings accepted by ParseOp.
var opAliases = map[string]Op{
	"NIN":         OpNotIn,
	"NOT_IN":      OpNotIn,
	"NOT_BETWEEN": OpNotBetween,
	"NOT_LIKE":    OpNotLike,
	"IS_NULL":     OpNull,
	"NOT_NULL":    OpNotNull,
	"GTE":         OpGTEQ,
	"LTE":         OpLTEQ,
	"NE":          OpNEQ,
}

// String returns the operator's name (e.g. "GTEQ").
func (o Op) String() string {
	if info, ok := ops[o]; ok {
		return info.name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Template returns the SQL text following the attribute. Variable-arity
// templates carry an empty "()" that is filled at render time.
func (o Op) Template() string {
	return ops[o].template
}

// Arity returns how many values the operator consumes: 0, 1, 2 or
// ArityVariable.
func (o Op) Arity() int {
	return ops[o].arity
}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	_, ok := ops[o]
	return ok
}

// ParseOp resolves an operator by name, case-insensitively.
func ParseOp(s string) (Op, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for op, info := range ops {
		if info.name == name {
			return op, nil
		}
	}
	if op, ok := opAliases[name]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Func is an aggregate (or pass-through) function applied to a selected
// column.
type Func int

const (
	FuncNative Func = iota
	FuncMax
	FuncMin
	FuncFirst
	FuncLast
	FuncSum
	FuncCount
	FuncDistinct
)

var funcs = map[Func][2]string{
	FuncNative:   {"NATIVE", "@"},
	FuncMax:      {"MAX", "MAX(@)"},
	FuncMin:      {"MIN", "MIN(@)"},
	FuncFirst:    {"FIRST", "FIRST(@)"},
	FuncLast:     {"LAST", "LAST(@)"},
	FuncSum:      {"SUM", "SUM(@)"},
	FuncCount:    {"COUNT", "COUNT(@)"},
	FuncDistinct: {"DISTINCT", "DISTINCT(@)"},
}

func (f Func) String() string {
	if v, ok := funcs[f]; ok {
		return v[0]
	}
	return fmt.Sprintf("Func(%d)", int(f))
}

// Template returns the function template; "@" marks the target.
func (f Func) Template() string {
	return funcs[f][1]
}

// Apply substitutes the target into the template: "*" when attr is nil,
// otherwise the qualified column.
func (f Func) Apply(attr *Attribute) string {
	target := "*"
	if attr != nil {
		target = attr.Qualified()
	}
	return strings.Replace(f.Template(), "@", target, 1)
}

// ParseFunc resolves an aggregate function by name. The empty string is
// FuncNative.
func ParseFunc(s string) (Func, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return FuncNative, nil
	}
	for f, v := range funcs {
		if v[0] == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown function %q", s)
}

// SelectType tells the executor how to interpret returned rows.
type SelectType int

const (
	// SelectEntity returns whole rows of the root table.
	SelectEntity SelectType = iota
	// SelectFields returns the projected columns.
	SelectFields
	// SelectSingle returns one scalar (e.g. COUNT(*)).
	SelectSingle
	// SelectResult returns projected columns as a generic result row.
	SelectResult
)

var selectTypeNames = []string{"entity", "fields", "single", "result"}

func (s SelectType) String() string {
	if int(s) >= 0 && int(s) < len(selectTypeNames) {
		return selectTypeNames[s]
	}
	return fmt.Sprintf("SelectType(%d)", int(s))
}

// ParseSelectType resolves a select type by name. The empty string is
// SelectEntity.
func ParseSelectType(s string) (SelectType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return SelectEntity, nil
	}
	for i, n := range selectTypeNames {
		if n == name {
			return SelectType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown select type %q", s)
}

// Conjunction joins a condition to the one emitted before it.
type Conjunction int

const (
	ConjNone Conjunction = iota
	ConjAnd
	ConjOr
	ConjNot
)

func (c Conjunction) String() string {
	switch c {
	case ConjAnd:
		return "AND"
	case ConjOr:
		return "OR"
	case ConjNot:
		return "NOT"
	default:
		return ""
	}
}

// infix is written between a condition and the previously emitted one.
// ConjNone falls back to AND so that two predicates never run together.
func (c Conjunction) infix() string {
	switch c {
	case ConjOr:
		return " OR "
	case ConjNot:
		return " AND NOT "
	default:
		return " AND "
	}
}

// prefix is written when the condition is the first one emitted.
func (c Conjunction) prefix() string {
	if c == ConjNot {
		return "NOT "
	}
	return ""
}

// ParseConjunction resolves a conjunction by name. The empty string is
// ConjNone.
func ParseConjunction(s string) (Conjunction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ConjNone, nil
	case "AND":
		return ConjAnd, nil
	case "OR":
		return ConjOr, nil
	case "NOT":
		return ConjNot, nil
	default:
		return 0, fmt.Errorf("unknown conjunction %q", s)
	}
}
