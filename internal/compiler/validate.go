package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/criteria/internal/criteria"
	"github.com/roach88/criteria/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// SchemaSpec errors (E101-E109)
	ErrSchemaTableEmpty   = "E101" // table is required
	ErrSchemaNoFields     = "E102" // at least one field required
	ErrInvalidFieldType   = "E103" // invalid type string
	ErrDuplicateName      = "E104" // duplicate schema/template/field/condition/join name
	ErrFloatTypeForbidden = "E105" // float types not allowed
	ErrInvalidIdentifier  = "E106" // table or column is not a plain SQL identifier

	// TemplateSpec errors (E110-E119)
	ErrUnknownSchema       = "E110" // template references an undefined schema
	ErrUnknownField        = "E111" // field not declared by the schema
	ErrUnknownOperator     = "E112" // operator name not recognised
	ErrInvalidKeyword      = "E113" // unknown conjunction, function, select or join type
	ErrUnknownJoinTemplate = "E114" // join references an undefined template
	ErrInvalidGroupBy      = "E115" // group_by without fields or invalid having
	ErrReservedName        = "E116" // condition name in the generated-name namespace
	ErrMissingName         = "E117" // required name is empty
	ErrInvalidLimit        = "E118" // negative limit

	// Catalog errors (E120-E129)
	ErrJoinCycle = "E120" // templates join each other in a cycle
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identPattern matches the table and column names that may be spliced into
// SQL text. Values are always bound as parameters; identifiers cannot be.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate validates a single compiled spec on its own.
// Returns all errors found (does not fail-fast).
// Supports SchemaSpec and TemplateSpec; cross-references between specs are
// checked by ValidateCatalog.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.SchemaSpec:
		return validateSchemaSpec(spec)
	case ir.SchemaSpec:
		return validateSchemaSpec(&spec)
	case *ir.TemplateSpec:
		return validateTemplateSpec(spec)
	case ir.TemplateSpec:
		return validateTemplateSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateSchemaSpec(spec *ir.SchemaSpec) []ValidationError {
	var errs []ValidationError

	// E101: table is required
	switch {
	case strings.TrimSpace(spec.Table) == "":
		errs = append(errs, ValidationError{
			Field:   "table",
			Message: "table is required and must be non-empty",
			Code:    ErrSchemaTableEmpty,
		})
	case !identPattern.MatchString(spec.Table):
		errs = append(errs, ValidationError{
			Field:   "table",
			Message: fmt.Sprintf("table %q is not a valid identifier", spec.Table),
			Code:    ErrInvalidIdentifier,
		})
	}

	// E102: at least one field required
	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrSchemaNoFields,
		})
	}

	seen := make(map[string]bool)
	for i, f := range spec.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[f.Name] = true

		if !identPattern.MatchString(f.Column) {
			errs = append(errs, ValidationError{
				Field:   path + ".column",
				Message: fmt.Sprintf("column %q is not a valid identifier", f.Column),
				Code:    ErrInvalidIdentifier,
			})
		}
		errs = append(errs, validateFieldType(f.Type, path+".type", f.Name)...)
	}
	return errs
}

// validateFieldType validates a type string, returning errors for invalid types and floats.
func validateFieldType(fieldType, fieldPath, fieldName string) []ValidationError {
	if ir.ValidTypes[fieldType] {
		return nil
	}
	// E105: float forbidden (reported instead of E103)
	if isFloatType(fieldType) {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("float type forbidden for field %q, use int instead", fieldName),
			Code:    ErrFloatTypeForbidden,
		}}
	}
	return []ValidationError{{
		Field:   fieldPath,
		Message: fmt.Sprintf("invalid type %q for field %q, must be one of: string, int, bool", fieldType, fieldName),
		Code:    ErrInvalidFieldType,
	}}
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	switch t {
	case "float", "float32", "float64", "number", "double", "real":
		return true
	}
	return false
}

// validateTemplateSpec checks everything that does not need the schema:
// names, keywords and shape.
func validateTemplateSpec(spec *ir.TemplateSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Schema) == "" {
		errs = append(errs, ValidationError{
			Field:   "schema",
			Message: "schema is required",
			Code:    ErrUnknownSchema,
		})
	}

	if _, err := criteria.ParseSelectType(spec.SelectType); err != nil {
		errs = append(errs, keywordError("select_type", err))
	}
	for i, sel := range spec.Select {
		if _, err := criteria.ParseFunc(sel.Func); err != nil {
			errs = append(errs, keywordError(fmt.Sprintf("select[%d].func", i), err))
		}
	}

	names := make(map[string]bool)
	for i, cond := range spec.Conditions {
		path := fmt.Sprintf("conditions[%d]", i)
		switch {
		case cond.Name == "":
			errs = append(errs, ValidationError{Field: path + ".name", Message: "condition name is required", Code: ErrMissingName})
		case strings.HasPrefix(cond.Name, criteria.GeneratedPrefix):
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("condition names starting with %q are reserved: %q", criteria.GeneratedPrefix, cond.Name),
				Code:    ErrReservedName,
			})
		case names[cond.Name]:
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate condition name: %q", cond.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[cond.Name] = true

		op, err := criteria.ParseOp(cond.Op)
		if err != nil {
			errs = append(errs, ValidationError{Field: path + ".op", Message: err.Error(), Code: ErrUnknownOperator})
		} else if op != criteria.OpSC && cond.Field == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".field",
				Message: fmt.Sprintf("operator %v needs a field", op),
				Code:    ErrUnknownField,
			})
		}
		if _, err := criteria.ParseConjunction(cond.Conj); err != nil {
			errs = append(errs, keywordError(path+".conj", err))
		}
	}

	joins := make(map[string]bool)
	for i, join := range spec.Joins {
		path := fmt.Sprintf("joins[%d]", i)
		if join.Name == "" {
			errs = append(errs, ValidationError{Field: path + ".name", Message: "join name is required", Code: ErrMissingName})
		} else if joins[join.Name] {
			errs = append(errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate join name: %q", join.Name),
				Code:    ErrDuplicateName,
			})
		}
		joins[join.Name] = true
		if _, err := criteria.ParseJoinType(join.Type); err != nil {
			errs = append(errs, keywordError(path+".type", err))
		}
	}

	if gb := spec.GroupBy; gb != nil {
		if len(gb.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   "group_by.fields",
				Message: "group_by needs at least one field",
				Code:    ErrInvalidGroupBy,
			})
		}
		if h := gb.Having; h != nil {
			if _, err := criteria.ParseFunc(h.Func); err != nil {
				errs = append(errs, keywordError("group_by.having.func", err))
			}
			op, err := criteria.ParseOp(h.Op)
			switch {
			case err != nil:
				errs = append(errs, ValidationError{Field: "group_by.having.op", Message: err.Error(), Code: ErrUnknownOperator})
			case op == criteria.OpSC:
				errs = append(errs, ValidationError{
					Field:   "group_by.having.op",
					Message: "sub-criteria cannot be used in having",
					Code:    ErrInvalidGroupBy,
				})
			}
		}
	}

	if spec.Limit < 0 {
		errs = append(errs, ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("limit must not be negative, got %d", spec.Limit),
			Code:    ErrInvalidLimit,
		})
	}
	return errs
}

func keywordError(field string, err error) ValidationError {
	return ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidKeyword}
}

// ValidateCatalog validates a set of schemas and templates together:
// every spec on its own, unique names, schema and field references, join
// targets and join cycles. Errors are prefixed with the spec they belong to.
func ValidateCatalog(schemas []ir.SchemaSpec, templates []ir.TemplateSpec) []ValidationError {
	var errs []ValidationError

	schemaByName := make(map[string]*ir.SchemaSpec, len(schemas))
	for i := range schemas {
		s := &schemas[i]
		prefix := "schema." + s.Name
		if _, dup := schemaByName[s.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   prefix,
				Message: fmt.Sprintf("duplicate schema name: %q", s.Name),
				Code:    ErrDuplicateName,
			})
		}
		schemaByName[s.Name] = s
		errs = append(errs, prefixed(prefix, validateSchemaSpec(s))...)
	}

	templateByName := make(map[string]*ir.TemplateSpec, len(templates))
	for i := range templates {
		t := &templates[i]
		if _, dup := templateByName[t.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   "template." + t.Name,
				Message: fmt.Sprintf("duplicate template name: %q", t.Name),
				Code:    ErrDuplicateName,
			})
		}
		templateByName[t.Name] = t
	}

	for i := range templates {
		t := &templates[i]
		prefix := "template." + t.Name
		errs = append(errs, prefixed(prefix, validateTemplateSpec(t))...)
		errs = append(errs, prefixed(prefix, validateReferences(t, schemaByName, templateByName))...)
	}

	for _, c := range AnalyzeJoinCycles(templates) {
		errs = append(errs, ValidationError{
			Field:   "template." + c.Path[0],
			Message: c.Message,
			Code:    ErrJoinCycle,
		})
	}
	return errs
}

// validateReferences checks the names a template resolves against other
// specs.
func validateReferences(t *ir.TemplateSpec, schemas map[string]*ir.SchemaSpec, templates map[string]*ir.TemplateSpec) []ValidationError {
	schema, ok := schemas[t.Schema]
	if !ok {
		if t.Schema == "" {
			return nil // reported by validateTemplateSpec
		}
		return []ValidationError{{
			Field:   "schema",
			Message: fmt.Sprintf("undefined schema %q", t.Schema),
			Code:    ErrUnknownSchema,
		}}
	}

	var errs []ValidationError
	checkField := func(path, field string) {
		if field != "" && !hasField(schema, field) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("schema %s has no field %q", schema.Name, field),
				Code:    ErrUnknownField,
			})
		}
	}

	for i, sel := range t.Select {
		checkField(fmt.Sprintf("select[%d].field", i), sel.Field)
	}
	for i, cond := range t.Conditions {
		if op, err := criteria.ParseOp(cond.Op); err == nil && op != criteria.OpSC {
			checkField(fmt.Sprintf("conditions[%d].field", i), cond.Field)
		}
	}
	for i, join := range t.Joins {
		path := fmt.Sprintf("joins[%d]", i)
		checkField(path+".local", join.Local)

		target, ok := templates[join.Template]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".template",
				Message: fmt.Sprintf("undefined template %q", join.Template),
				Code:    ErrUnknownJoinTemplate,
			})
			continue
		}
		if remote, ok := schemas[target.Schema]; ok && !hasField(remote, join.Remote) {
			errs = append(errs, ValidationError{
				Field:   path + ".remote",
				Message: fmt.Sprintf("schema %s has no field %q", remote.Name, join.Remote),
				Code:    ErrUnknownField,
			})
		}
	}
	if gb := t.GroupBy; gb != nil {
		for i, f := range gb.Fields {
			checkField(fmt.Sprintf("group_by.fields[%d]", i), f)
		}
		if gb.Having != nil {
			checkField("group_by.having.field", gb.Having.Field)
		}
	}
	for i, o := range t.OrderBy {
		checkField(fmt.Sprintf("order_by[%d].field", i), o.Field)
	}
	return errs
}

func hasField(s *ir.SchemaSpec, name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func prefixed(prefix string, errs []ValidationError) []ValidationError {
	for i := range errs {
		errs[i].Field = prefix + "." + errs[i].Field
	}
	return errs
}
