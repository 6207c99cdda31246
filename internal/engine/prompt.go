package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractionsPayload is the JSON shape the model is asked to produce.
type extractionsPayload struct {
	Extractions []Extraction `json:"extractions"`
}

// RenderSystemPrompt builds the system message from the caller's task
// description.
func RenderSystemPrompt(description string) string {
	var b strings.Builder
	b.WriteString("You extract structured information from text.\n\n")
	b.WriteString("Task description:\n")
	b.WriteString(description)
	b.WriteString("\n\n")
	b.WriteString("Respond with a single JSON object of the form ")
	b.WriteString(`{"extractions": [{"extraction_class": ..., "extraction_text": ..., "attributes": ...}]}.`)
	b.WriteString(" Use the exact text spans from the input as extraction_text.")
	b.WriteString(" Respond with JSON only, no prose and no code fences.")
	return b.String()
}

// RenderUserPrompt builds the user message: few-shot examples in order,
// then the text to process.
func RenderUserPrompt(examples []ExampleData, text string) (string, error) {
	var b strings.Builder
	for _, ex := range examples {
		out, err := json.Marshal(extractionsPayload{Extractions: ex.Extractions})
		if err != nil {
			return "", fmt.Errorf("failed to render example: %w", err)
		}
		b.WriteString("Text: ")
		b.WriteString(ex.Text)
		b.WriteString("\nOutput: ")
		b.Write(out)
		b.WriteString("\n\n")
	}
	b.WriteString("Text: ")
	b.WriteString(text)
	b.WriteString("\nOutput:")
	return b.String(), nil
}
