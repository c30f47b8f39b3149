package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema validates the outer contract every stage output must honor.
// Payload keys beyond the envelope are allowed; the diagnostics block is not
// optional.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["schema", "generated_at", "prefix", "diagnostics"],
  "properties": {
    "schema": {"type": "string", "minLength": 1},
    "generated_at": {"type": "string"},
    "prefix": {"type": "string", "minLength": 1},
    "diagnostics": {
      "type": "object",
      "required": ["declared_count", "attempted_count", "produced_count", "skip_reasons", "inputs_present"],
      "properties": {
        "declared_count": {"type": "integer", "minimum": 0},
        "attempted_count": {"type": "integer", "minimum": 0},
        "produced_count": {"type": "integer", "minimum": 0},
        "skip_reasons": {"type": "array", "items": {"type": "string"}},
        "inputs_present": {"type": "object", "additionalProperties": {"type": "boolean"}}
      }
    }
  }
}`

var envelopeSchemaLoader = gojsonschema.NewStringLoader(envelopeSchema)

// ValidateEnvelope checks that a marshaled artifact carries a well-formed
// envelope. Used by stage helpers before publishing and by tests.
func ValidateEnvelope(data []byte) error {
	result, err := gojsonschema.Validate(envelopeSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate envelope: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("envelope invalid: %s", strings.Join(issues, "; "))
}

// ValidateEnvelopeValue marshals value and validates its envelope.
func ValidateEnvelopeValue(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("validate envelope: marshal: %w", err)
	}
	return ValidateEnvelope(data)
}
