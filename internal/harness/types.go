package harness

import "github.com/roach88/criteria/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Where and Values are the root criteria's compiled WHERE fragment.
	Where  string     `json:"where"`
	Values ir.IRArray `json:"values"`

	// SQL and Args are the assembled statement.
	SQL  string     `json:"sql"`
	Args ir.IRArray `json:"args"`

	// Rows are the rows the statement returned.
	Rows []ir.IRObject `json:"rows"`

	// QueryLog is the store's query log after execution.
	QueryLog []ir.QueryRecord `json:"query_log"`

	// Error is the failure of applying steps, compiling or executing.
	// Empty when the statement ran.
	Error string `json:"error,omitempty"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Values:   ir.IRArray{},
		Args:     ir.IRArray{},
		Rows:     []ir.IRObject{},
		QueryLog: []ir.QueryRecord{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
