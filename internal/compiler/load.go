package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/criteria/internal/ir"
)

// ErrNoSpecs is returned when a directory loads as CUE but declares no
// schema or template.
var ErrNoSpecs = errors.New("no schemas or templates found")

// Specs is the compiled content of one spec directory.
type Specs struct {
	Schemas   []ir.SchemaSpec
	Templates []ir.TemplateSpec
	Value     cue.Value // the built CUE instance
	Files     int       // number of .cue files found
}

// DirErrorKind classifies why a spec directory could not be loaded.
type DirErrorKind int

const (
	DirNotFound DirErrorKind = iota + 1
	DirScanFailed
	DirNoFiles
	DirLoadFailed
	DirBuildFailed
)

// DirError reports a spec directory that could not be read as a CUE
// instance. No spec in it was compiled.
type DirError struct {
	Kind DirErrorKind
	Dir  string
	Err  error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dir, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }

// SpecError attaches the CUE path of a spec (e.g. "schema.User") to the
// error that stopped its compilation.
type SpecError struct {
	Spec string
	Err  error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Spec, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// LoadDir loads every .cue file in dir as one CUE instance and compiles its
// top-level `schema` and `template` structs, in declaration order.
//
// A *DirError is returned alone with a nil *Specs. Otherwise compile errors
// are collected as *SpecError; with failFast the first one stops loading.
// The returned *Specs holds everything that did compile.
func LoadDir(dir string, failFast bool) (*Specs, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&DirError{Kind: DirNotFound, Dir: dir, Err: err}}
	}
	if !info.IsDir() {
		return nil, []error{&DirError{Kind: DirNotFound, Dir: dir, Err: errors.New("not a directory")}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&DirError{Kind: DirScanFailed, Dir: dir, Err: err}}
	}
	if len(files) == 0 {
		return nil, []error{&DirError{Kind: DirNoFiles, Dir: dir, Err: errors.New("no CUE files found")}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&DirError{Kind: DirLoadFailed, Dir: dir, Err: errors.New("no CUE instances loaded")}}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, []error{&DirError{Kind: DirLoadFailed, Dir: dir, Err: inst.Err}}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, []error{&DirError{Kind: DirBuildFailed, Dir: dir, Err: formatCUEError(err)}}
	}

	specs := &Specs{Value: value, Files: len(files)}
	var errs []error
	stop := func(err error) bool {
		errs = append(errs, err)
		return failFast
	}

	if each(value, "schema", func(path string, v cue.Value) bool {
		spec, err := CompileSchema(v)
		if err != nil {
			return stop(&SpecError{Spec: path, Err: err})
		}
		specs.Schemas = append(specs.Schemas, *spec)
		return false
	}, stop) {
		return specs, errs
	}

	if each(value, "template", func(path string, v cue.Value) bool {
		spec, err := CompileTemplate(v)
		if err != nil {
			return stop(&SpecError{Spec: path, Err: err})
		}
		specs.Templates = append(specs.Templates, *spec)
		return false
	}, stop) {
		return specs, errs
	}

	if len(specs.Schemas) == 0 && len(specs.Templates) == 0 && len(errs) == 0 {
		errs = append(errs, &SpecError{Spec: dir, Err: ErrNoSpecs})
	}
	return specs, errs
}

// each calls fn for every field of the optional struct at root. It reports
// whether loading should stop.
func each(value cue.Value, root string, fn func(path string, v cue.Value) bool, stop func(error) bool) bool {
	v := value.LookupPath(cue.ParsePath(root))
	if !v.Exists() {
		return false
	}
	iter, err := v.Fields()
	if err != nil {
		return stop(&SpecError{Spec: root, Err: formatCUEError(err)})
	}
	for iter.Next() {
		if fn(root+"."+iter.Selector().Unquoted(), iter.Value()) {
			return true
		}
	}
	return false
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
