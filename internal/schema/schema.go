// Package schema validates decoded request bodies against the JSON Schemas
// of the task and comment payloads.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var files embed.FS

const baseURL = "https://tasks-api.local/schemas/"

// Kind names one of the embedded schemas.
type Kind string

const (
	Task          Kind = "task.json"
	TaskPatch     Kind = "task_patch.json"
	Comment       Kind = "comment.json"
	CommentUpdate Kind = "comment_update.json"
)

var kinds = []Kind{Task, TaskPatch, Comment, CommentUpdate}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	for _, kind := range kinds {
		data, err := files.ReadFile("schemas/" + string(kind))
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(baseURL+string(kind), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", kind, err)
		}
	}

	v := &Validator{schemas: make(map[Kind]*jsonschema.Schema, len(kinds))}
	for _, kind := range kinds {
		s, err := compiler.Compile(baseURL + string(kind))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", kind, err)
		}
		v.schemas[kind] = s
	}
	return v, nil
}

// Validate checks doc, a value produced by json.Unmarshal into an empty
// interface, against the schema of the given kind. Schema violations are
// reported as *Error.
func (v *Validator) Validate(kind Kind, doc any) error {
	s, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("unknown schema %q", kind)
	}

	err := s.Validate(doc)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	result := &Error{}
	collectProblems(result, ve)
	sort.Strings(result.Problems)
	return result
}

// Error lists every schema violation found in a document.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return strings.Join(e.Problems, "; ")
}

func collectProblems(result *Error, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		result.Problems = append(result.Problems, formatProblem(err.InstanceLocation, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectProblems(result, cause)
	}
}

func formatProblem(ptr, msg string) string {
	path := strings.ReplaceAll(strings.TrimPrefix(ptr, "/"), "/", ".")
	if path == "" {
		return msg
	}
	return path + ": " + msg
}
