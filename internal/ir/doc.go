// Package ir provides the serializable representation of query shapes and
// query traffic: schema and template specs produced by the CUE compiler,
// mutation steps sent by the CLI, HTTP API and test scenarios, and the
// constrained value types used for arguments and result rows.
//
// ir imports nothing internal. Every other package may import it.
//
// Key design constraints:
//   - NO float types anywhere; numbers are int64
//   - All JSON tags use snake_case
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing and
//     golden snapshots
package ir
