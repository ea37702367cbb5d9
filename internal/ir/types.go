package ir

// SchemaSpec is a compiled schema: a logical entity backed by one table.
type SchemaSpec struct {
	Name   string      `json:"name"`
	Table  string      `json:"table"`
	Fields []FieldSpec `json:"fields"` // sorted by Name
}

// FieldSpec maps a logical field to a column.
type FieldSpec struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Type   string `json:"type"`          // "string", "int" or "bool"
	Key    bool   `json:"key,omitempty"` // primary key column
}

// ValidTypes defines the allowed field type strings.
// NO "float" - floats are forbidden in IR.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
}

// TemplateSpec is a compiled query template. Names of schemas, fields,
// operators and functions are unresolved strings here; the catalog resolves
// them into a criteria.Template.
type TemplateSpec struct {
	Name       string          `json:"name"`
	Schema     string          `json:"schema"`
	SelectType string          `json:"select_type,omitempty"`
	Select     []SelectSpec    `json:"select,omitempty"`
	Conditions []ConditionSpec `json:"conditions,omitempty"`
	Joins      []JoinSpec      `json:"joins,omitempty"`
	GroupBy    *GroupBySpec    `json:"group_by,omitempty"`
	OrderBy    []OrderSpec     `json:"order_by,omitempty"`
	Limit      int64           `json:"limit,omitempty"`
}

// SelectSpec is one projection entry. An empty Field targets "*".
type SelectSpec struct {
	Func  string `json:"func,omitempty"`
	Field string `json:"field,omitempty"`
}

// ConditionSpec is a fixed condition. Field is empty for "SC" slots.
type ConditionSpec struct {
	Name  string `json:"name"`
	Conj  string `json:"conj,omitempty"`
	Field string `json:"field,omitempty"`
	Op    string `json:"op"`
}

// JoinSpec joins another template on Local (this schema) = Remote (the
// joined template's schema).
type JoinSpec struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
	Type     string `json:"type,omitempty"`
}

// GroupBySpec groups by fields of the template's schema.
type GroupBySpec struct {
	Fields []string    `json:"fields"`
	Having *HavingSpec `json:"having,omitempty"`
}

// HavingSpec is an aggregate predicate bound by group-by values.
type HavingSpec struct {
	Func  string `json:"func"`
	Field string `json:"field,omitempty"`
	Op    string `json:"op"`
}

// OrderSpec orders results by a field of the template's schema.
type OrderSpec struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// QueryRecord is one executed statement in the store's query log.
type QueryRecord struct {
	ID          string  `json:"id"`  // UUIDv7
	Seq         int64   `json:"seq"` // Logical clock
	Template    string  `json:"template"`
	SQL         string  `json:"sql"`
	Args        IRArray `json:"args"`
	Fingerprint string  `json:"fingerprint"` // StatementFingerprint(SQL, Args)
	Rows        int64   `json:"rows"`
}
