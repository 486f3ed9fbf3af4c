package harness

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

// SchemaError reports a manifest that does not match the suite schema.
type SchemaError struct {
	File   string
	Issues []string // one entry per violation, with its CUE path
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema: %v", e.File, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ValidateSchema checks a YAML manifest against the embedded CUE schema.
// filename is only used in error positions.
//
// Each call builds its own cue.Context, since contexts are not safe for
// concurrent use.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling suite schema: %w", err)
	}
	suite := schema.LookupPath(cue.ParsePath("#Suite"))
	if !suite.Exists() {
		return fmt.Errorf("suite schema has no #Suite definition")
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := suite.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		schemaErr := &SchemaError{File: filename, Err: err}
		for _, e := range cueerrors.Errors(err) {
			schemaErr.Issues = append(schemaErr.Issues, e.Error())
		}
		return schemaErr
	}
	return nil
}
