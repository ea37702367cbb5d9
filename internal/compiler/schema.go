package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/criteria/internal/ir"
)

// CompileSchema parses a CUE value into a SchemaSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the schema struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: User: { table: "users", fields: { id: int } }`)
//	spec, err := CompileSchema(v.LookupPath(cue.ParsePath("schema.User")))
//
// A field is either a bare type (string, int, bool) or a struct with
// column, type and key. The column defaults to the field name.
func CompileSchema(v cue.Value) (*ir.SchemaSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.SchemaSpec{Name: labelOf(v)}

	table, err := requiredString(v, "table")
	if err != nil {
		return nil, err
	}
	spec.Table = table

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		field, err := parseField(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, field)
	}
	if len(spec.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	sort.Slice(spec.Fields, func(i, j int) bool {
		return spec.Fields[i].Name < spec.Fields[j].Name
	})
	return spec, nil
}

// parseField reads one field entry, either `name: int` or
// `name: {column: "col", type: "int", key: true}`.
func parseField(name string, v cue.Value) (ir.FieldSpec, error) {
	field := ir.FieldSpec{Name: name, Column: name}

	if v.IncompleteKind() != cue.StructKind {
		typ, err := extractTypeName(v)
		if err != nil {
			return field, err
		}
		field.Type = typ
		return field, nil
	}

	column, err := optionalString(v, "column")
	if err != nil {
		return field, err
	}
	if column != "" {
		field.Column = column
	}

	typ, err := requiredString(v, "type")
	if err != nil {
		return field, err
	}
	field.Type = typ

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if keyVal.Exists() {
		key, err := keyVal.Bool()
		if err != nil {
			return field, formatCUEError(err)
		}
		field.Key = key
	}
	return field, nil
}

// extractTypeName converts a CUE type to a field type string.
// Floats are forbidden.
func extractTypeName(v cue.Value) (string, error) {
	// A concrete string such as "int" names the type directly.
	if s, err := v.String(); err == nil {
		return s, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// labelOf returns the last path selector of v, i.e. the spec's name.
func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1].Unquoted()
}

func requiredString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
