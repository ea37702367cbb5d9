package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/criteria/internal/catalog"
	"github.com/roach88/criteria/internal/compiler"
	"github.com/roach88/criteria/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Schemas   []ir.SchemaSpec
	Templates []ir.TemplateSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads and compiles the CUE specs of a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil *LoadResult means the directory itself could not be loaded.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	specs, errs := compiler.LoadDir(dir, mode == LoadModeFailFast)

	converted := make([]error, len(errs))
	for i, err := range errs {
		converted[i] = convertLoadError(err)
	}
	if specs == nil {
		return nil, converted
	}

	return &LoadResult{
		Schemas:   specs.Schemas,
		Templates: specs.Templates,
		CUEValue:  specs.Value,
		FileCount: specs.Files,
	}, converted
}

// LoadCatalog loads dir and links it into a catalog. Any load, validation
// or link failure is returned as a *LoadError.
func LoadCatalog(dir string) (*catalog.Catalog, error) {
	result, errs := LoadSpecs(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	cat, err := catalog.Build(result.Schemas, result.Templates)
	if err != nil {
		var buildErr *catalog.BuildError
		if errors.As(err, &buildErr) {
			first := buildErr.Errors[0]
			return nil, &LoadError{Code: first.Code, Message: fmt.Sprintf("%s: %s", first.Field, first.Message)}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	return cat, nil
}

// convertLoadError converts a compiler load error to a LoadError with
// position info.
func convertLoadError(err error) *LoadError {
	var dirErr *compiler.DirError
	if errors.As(err, &dirErr) {
		return &LoadError{Code: dirErrorCode(dirErr.Kind), Message: dirErr.Error()}
	}

	if errors.Is(err, compiler.ErrNoSpecs) {
		return &LoadError{Code: ErrCodeGeneric, Message: compiler.ErrNoSpecs.Error()}
	}

	// Prefix the message with the spec path, e.g. "template.Users: ".
	prefix := ""
	var specErr *compiler.SpecError
	if errors.As(err, &specErr) {
		prefix = specErr.Spec + ": "
		err = specErr.Err
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: prefix + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: prefix + err.Error()}
}

func dirErrorCode(kind compiler.DirErrorKind) string {
	switch kind {
	case compiler.DirNotFound:
		return ErrCodeNotFound
	case compiler.DirScanFailed:
		return ErrCodeScanError
	case compiler.DirNoFiles:
		return ErrCodeNoFiles
	case compiler.DirLoadFailed:
		return ErrCodeLoadFailed
	case compiler.DirBuildFailed:
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadFlag     = "E008" // Malformed step flag or steps file
	ErrCodeStore       = "E009" // Database open or fixture load failure

	// Criteria errors carry the criteria error code (UNKNOWN_FIELD, ...)
	// when there is one.
	ErrCodeCriteria = "E010"
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "table":
		return compiler.ErrSchemaTableEmpty
	case "fields":
		return compiler.ErrSchemaNoFields
	case "type":
		return compiler.ErrInvalidFieldType
	case "schema":
		return compiler.ErrUnknownSchema
	case "name":
		return compiler.ErrMissingName
	case "op", "group_by.having.op":
		return compiler.ErrUnknownOperator
	case "group_by", "group_by.fields":
		return compiler.ErrInvalidGroupBy
	case "limit":
		return compiler.ErrInvalidLimit
	default:
		return ErrCodeGeneric
	}
}
