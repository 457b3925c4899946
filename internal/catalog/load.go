package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// Load reads every CUE file in dir as one instance, validates it against
// the schema and compiles it. All problems found are returned.
func Load(dir string) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&Error{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&Error{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&Error{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&Error{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	cat, errs := build(ctx, ctx.BuildInstance(inst))
	if cat != nil {
		cat.FileCount = len(files)
	}
	return cat, errs
}

// Parse compiles a single CUE source. filename is used in positions.
func Parse(filename string, src []byte) (*Catalog, []error) {
	ctx := cuecontext.New()
	cat, errs := build(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
	if cat != nil {
		cat.FileCount = 1
	}
	return cat, errs
}

func build(ctx *cue.Context, value cue.Value) (*Catalog, []error) {
	if err := value.Err(); err != nil {
		return nil, cueErrors(ErrCodeBuildFailed, err)
	}

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, cueErrors(ErrCodeBuildFailed, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueErrors(ErrCodeSchema, err)
	}
	return compile(unified)
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

// cueErrors splits a CUE error into one Error per problem, keeping the
// first source position of each.
func cueErrors(code string, err error) []error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return []error{&Error{Code: code, Message: err.Error()}}
	}
	out := make([]error, 0, len(list))
	for _, e := range list {
		ce := &Error{Code: code, Message: e.Error()}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ce.Pos = pos[0]
		}
		out = append(out, ce)
	}
	return out
}
