// Package criteria provides runtime search criteria: a tree of named
// conditions, joins, projections and grouping instructions that compiles
// into a parameterized SQL WHERE fragment and an ordered argument list.
//
// A query shape is declared once as a frozen Template (see TemplateBuilder).
// Each query invocation calls Template.New to obtain a fresh Criteria, binds
// values to the template's named conditions, appends ad-hoc conditions, and
// finally calls Compile:
//
//	c := users.New()
//	_ = c.SetParameters("status", "active")
//	_ = c.AddAnd("role", criteria.OpIn, "admin", "ops")
//	clause, err := c.Compile()
//	// clause.SQL:    users.status = ? AND users.role IN (?, ?)
//	// clause.Values: ["active", "admin", "ops"]
//
// # Optional Filters
//
// A condition whose operator needs values but has none bound is left out of
// the compiled clause. This is what makes a template a set of optional
// filters: callers bind only the ones they need. Conditions with arity-0
// operators (IS NULL, IS NOT NULL) are always emitted.
//
// # Alignment
//
// Compile decides eligibility and order in a single planning pass and
// renders both the SQL text and the argument list from that plan. The number
// of ? placeholders in Clause.SQL always equals len(Clause.Values):
//   - variable-arity operators (IN, NOT IN) get one placeholder per value
//   - a nil bound to EQ/NEQ renders IS NULL / IS NOT NULL with no placeholder
//   - a sub-criteria (OpSC) splices its own arguments at its position
//
// # Ownership
//
// Templates, schemas and attributes are immutable once built and may be
// shared by any number of goroutines. A Criteria is owned by one query
// invocation and is not safe for concurrent mutation.
package criteria
