package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionsSchema validates the model's structured output before it is
// accepted. Extra keys are tolerated; the two required fields are not.
const extractionsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["extractions"],
  "properties": {
    "extractions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["extraction_class", "extraction_text"],
        "properties": {
          "extraction_class": {"type": "string", "minLength": 1},
          "extraction_text": {"type": "string", "minLength": 1},
          "attributes": {"type": "object"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var compiledExtractionsSchema = jsonschema.MustCompileString("extractions.schema.json", extractionsSchema)

// ParseExtractions parses and validates a model response. It strips
// markdown code fences if present, since some models wrap JSON despite
// instructions.
func ParseExtractions(content string) ([]Extraction, error) {
	content = stripCodeFence(content)

	var decoded any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if err := compiledExtractionsSchema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("model response failed schema validation: %w", err)
	}

	var payload extractionsPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode extractions: %w", err)
	}
	return payload.Extractions, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
