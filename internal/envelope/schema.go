package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// draft07 is the newest draft gojsonschema understands.
const draft07 = "http://json-schema.org/draft-07/schema#"

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		Anonymous:                 true,
	}
}

// EnvelopeSchema returns the JSON Schema every completion must satisfy.
func EnvelopeSchema() *jsonschema.Schema {
	s := newReflector().Reflect(&domain.Envelope{})
	s.Version = draft07
	s.Title = "SOP consultant reply"
	s.Description = "Envelope returned by the consultant for every dialogue turn."
	return s
}

// BlueprintSchema returns the JSON Schema of sop_data on its own.
func BlueprintSchema() *jsonschema.Schema {
	s := newReflector().Reflect(&domain.Blueprint{})
	s.Version = draft07
	s.Title = "SOP blueprint"
	return s
}

// Validator checks JSON documents against a reflected schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the envelope schema.
func NewValidator() (*Validator, error) {
	return compile(EnvelopeSchema())
}

// NewBlueprintValidator compiles the sop_data schema.
func NewBlueprintValidator() (*Validator, error) {
	return compile(BlueprintSchema())
}

func compile(s *jsonschema.Schema) (*Validator, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns an error describing every schema violation in doc.
func (v *Validator) Validate(doc []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
}
