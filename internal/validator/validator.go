// Package validator checks tool arguments against JSON schemas.
package validator

import (
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
	raw    []byte
}

// Result is the outcome of a validation.
type Result struct {
	Valid       bool      `json:"valid"`
	Errors      []string  `json:"errors,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Compile parses a JSON schema document.
func Compile(raw []byte) (*Schema, error) {
	if len(raw) == 0 {
		return nil, errors.New("schema is empty")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{schema: schema, raw: append([]byte(nil), raw...)}, nil
}

// Raw returns the schema document the Schema was compiled from.
func (s *Schema) Raw() []byte {
	return append([]byte(nil), s.raw...)
}

// Validate checks a JSON payload against the schema.
func (s *Schema) Validate(payload []byte) Result {
	result := Result{Valid: true, GeneratedAt: time.Now()}

	if len(payload) == 0 {
		payload = []byte("{}")
	}
	outcome, err := s.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid JSON payload: %v", err))
		return result
	}
	if !outcome.Valid() {
		result.Valid = false
		for _, e := range outcome.Errors() {
			result.Errors = append(result.Errors, e.String())
		}
	}
	return result
}
