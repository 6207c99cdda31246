package extract

import (
	"github.com/lexgate/lexgate/internal/engine"
)

// CompileExamples converts caller example payloads into the engine's
// typed representation. Order of examples and of extractions within each
// example is preserved; the engine is order-sensitive for few-shot
// prompting. Fails on the first extraction missing a required field.
func CompileExamples(specs []ExampleSpec) ([]engine.ExampleData, error) {
	compiled := make([]engine.ExampleData, 0, len(specs))
	for _, spec := range specs {
		ex := engine.ExampleData{Text: spec.Text}
		for _, raw := range spec.Extractions {
			class, _ := raw["extraction_class"].(string)
			text, _ := raw["extraction_text"].(string)
			if class == "" || text == "" {
				return nil, &BadRequestError{
					Reason: "each extraction in examples must include 'extraction_class' and 'extraction_text'",
				}
			}

			ext := engine.Extraction{
				ExtractionClass: class,
				ExtractionText:  text,
			}
			// Optional fields pass through unset when absent; the engine
			// distinguishes absent from empty.
			if attrs, ok := raw["attributes"].(map[string]any); ok {
				ext.Attributes = attrs
			}
			if desc, ok := raw["description"].(string); ok {
				ext.Description = &desc
			}
			ex.Extractions = append(ex.Extractions, ext)
		}
		compiled = append(compiled, ex)
	}
	return compiled, nil
}
