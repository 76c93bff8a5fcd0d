// Package validate checks result bodies against JSON Schema documents.
package validate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// ErrNotJSON is returned when the validated body is not JSON.
var ErrNotJSON = errors.New("body is not valid JSON")

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// Schema is a compiled JSON Schema, safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
	path   string
}

// Option configures a Schema.
type Option func(*Schema)

// AtPath validates the value at a gjson path instead of the whole body,
// e.g. "data" for enveloped responses.
func AtPath(path string) Option {
	return func(s *Schema) {
		s.path = path
	}
}

// Compile parses a schema document.
func Compile(schema []byte, opts ...Option) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	s := &Schema{schema: compiled}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load reads and compiles the schema file at path.
func Load(path string, opts ...Option) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Compile(data, opts...)
}

// Body validates a raw JSON document.
func (s *Schema) Body(body []byte) error {
	if !gjson.ValidBytes(body) {
		return ErrNotJSON
	}
	doc := body
	if s.path != "" {
		v := gjson.GetBytes(body, s.path)
		if !v.Exists() {
			return &ValidationError{Violations: []string{fmt.Sprintf("%s: value is missing", s.path)}}
		}
		doc = []byte(v.Raw)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &ValidationError{Violations: violations}
}

// Result validates the body of a successful result. Failed results are
// returned as their own error.
func (s *Schema) Result(res *webservice.Result) error {
	if res == nil {
		return errors.New("no result")
	}
	if res.Err != nil {
		return res.Err
	}
	return s.Body(res.Body)
}
