// Package schema validates tool-call arguments and custom structured-output
// schemas against a JSON Schema descriptor, fulfilling the Tool Registry's
// validate-before-execute requirement (SPEC_FULL §4.2, §4.11).
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against a schema.
type Validator interface {
	Validate(data interface{}) error
	JSONSchema() map[string]interface{}
}

// JSONSchemaValidator validates using a JSON Schema document, compiled on
// first use and cached on the validator.
type JSONSchemaValidator struct {
	mu       sync.Mutex
	schema   map[string]interface{}
	compiled *jsonschema.Schema
}

// NewJSONSchema creates a new JSON Schema validator. Compilation is
// deferred to the first Validate call so that constructing a validator for
// a tool definition that is never invoked costs nothing.
func NewJSONSchema(schema map[string]interface{}) *JSONSchemaValidator {
	return &JSONSchemaValidator{schema: schema}
}

// Validate validates data against the JSON Schema.
func (v *JSONSchemaValidator) Validate(data interface{}) error {
	compiled, err := v.compile()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if compiled == nil {
		return nil
	}

	// jsonschema validates decoded JSON values (map[string]any, []any,
	// float64, ...), not arbitrary Go structs, so round-trip through JSON
	// the same way the caller's tool-call arguments already arrived (as a
	// JSON string per SPEC_FULL §3).
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode value for validation: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("decode value for validation: %w", err)
	}
	return compiled.Validate(decoded)
}

func (v *JSONSchemaValidator) compile() (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.compiled != nil {
		return v.compiled, nil
	}
	if len(v.schema) == 0 {
		return nil, nil
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool-arguments.json", v.schema); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("tool-arguments.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.compiled = compiled
	return compiled, nil
}

// JSONSchema returns the original schema document.
func (v *JSONSchemaValidator) JSONSchema() map[string]interface{} {
	return v.schema
}

// ValidateArgumentsJSON validates a tool call's raw JSON argument string
// against its parameters schema, the entry point the Tool Registry calls
// before dispatch.
func ValidateArgumentsJSON(parameters map[string]interface{}, argumentsJSON string) error {
	if len(parameters) == 0 {
		return nil
	}
	var args any
	if argumentsJSON == "" {
		argumentsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Errorf("malformed arguments json: %w", err)
	}
	return NewJSONSchema(parameters).Validate(args)
}
