package criteria

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes criteria errors. All of them are configuration
// mistakes by the caller; none is transient.
type ErrorCode string

const (
	// ErrCodeUnknownField indicates a field name missing from the registry.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeUnknownCondition indicates parameters bound to a condition name
	// that exists in neither the fixed nor the additional list.
	ErrCodeUnknownCondition ErrorCode = "UNKNOWN_CONDITION"

	// ErrCodeUnknownJoin indicates a join name that cannot be resolved.
	ErrCodeUnknownJoin ErrorCode = "UNKNOWN_JOIN"

	// ErrCodeMissingSubcriteria indicates an OpSC condition without a bound
	// *Criteria value.
	ErrCodeMissingSubcriteria ErrorCode = "MISSING_SUBCRITERIA"

	// ErrCodeArityMismatch indicates a fixed-arity operator bound with the
	// wrong number of values.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeCycle indicates a tree that would become its own descendant.
	ErrCodeCycle ErrorCode = "CRITERIA_CYCLE"

	// ErrCodeNoGroupBy indicates group-by values set on a criteria whose
	// template has no group-by descriptor.
	ErrCodeNoGroupBy ErrorCode = "NO_GROUP_BY"

	// ErrCodeDuplicateName indicates a condition or join name used twice.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeReservedName indicates a builder-supplied condition name inside
	// the generated-name namespace.
	ErrCodeReservedName ErrorCode = "RESERVED_NAME"

	// ErrCodeInvalidCondition indicates a malformed condition (unknown
	// operator, missing attribute).
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeInvalidOffset indicates a projection insert offset outside the
	// destination string.
	ErrCodeInvalidOffset ErrorCode = "INVALID_OFFSET"
)

// Error is returned for every criteria precondition violation.
type Error struct {
	Code ErrorCode

	// Name is the field, condition or join the error is about.
	Name string

	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s: %q", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

// Code extracts the ErrorCode from err, or "" if err is not a criteria error.
// Uses errors.As to handle wrapped errors.
func Code(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnknownJoin reports whether err is a join lookup failure.
func IsUnknownJoin(err error) bool {
	return Code(err) == ErrCodeUnknownJoin
}

// IsUnknownField reports whether err is a field lookup failure.
func IsUnknownField(err error) bool {
	return Code(err) == ErrCodeUnknownField
}

// IsUnknownCondition reports whether err is a condition lookup failure.
func IsUnknownCondition(err error) bool {
	return Code(err) == ErrCodeUnknownCondition
}
