// Package harness provides conformance testing for criteria templates.
//
// The harness compiles a spec directory, loads fixture rows into an
// in-memory database, applies a scenario's steps to a fresh criteria and
// checks the compiled statement and the rows it returns.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs: ../specs            # optional; defaults to the base path
//	template: Users
//	fixtures:
//	  User:
//	    - { id: 1, status: active }
//	steps:
//	  - action: set
//	    name: status
//	    values: [active]
//	expect:
//	  where: "users.status = ?"
//	  values: [active]
//	  rows:
//	    - { id: 1, status: active }
//	assertions:
//	  - type: row_count
//	    count: 1
//
// An expected error is either a criteria error code such as
// UNKNOWN_FIELD or a substring of the error message.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - rows_contain: Verifies some returned row matches the given columns
//   - row_order: Verifies rows carrying the given values of a field appear in order
//   - row_count: Verifies exactly N rows were returned
//   - query_logged: Verifies the query log holds N statements for a template
//
// # Deterministic Testing
//
// All scenarios execute with sequential query IDs (testutil.SequentialIDGenerator)
// and a deterministic logical clock (testutil.Clock) in a
// private in-memory SQLite database, so snapshots are identical across
// runs and can be compared against golden files.
package harness
