// Package engine defines the extraction engine contract and ships two
// implementations: an OpenAI-compatible provider-backed engine and a mock
// for tests. The gateway treats the engine result as an opaque value and
// normalizes it downstream.
package engine

import "context"

// Extraction is a single extracted span with its class label.
// Attributes and Description stay unset when the caller omitted them;
// the few-shot prompt distinguishes absent from empty.
type Extraction struct {
	ExtractionClass string         `json:"extraction_class"`
	ExtractionText  string         `json:"extraction_text"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	Description     *string        `json:"description,omitempty"`
}

// ExampleData is one few-shot example: a source text and the extractions
// the model should have produced for it. Order matters for prompting.
type ExampleData struct {
	Text        string       `json:"text"`
	Extractions []Extraction `json:"extractions"`
}

// AnnotatedDocument is the engine's result for one input document.
type AnnotatedDocument struct {
	DocumentID  string       `json:"document_id"`
	Text        string       `json:"text"`
	Extractions []Extraction `json:"extractions"`
}

// Request carries the fixed parameter set for one engine invocation.
type Request struct {
	Text              string
	PromptDescription string
	Examples          []ExampleData
	ModelID           string
	ExtractionPasses  int
	MaxWorkers        int
	MaxCharBuffer     int

	// Params holds allow-listed tuning keys passed through from the caller.
	// Engines apply the keys they understand and ignore the rest.
	Params map[string]any
}

// Engine runs one extraction. The result is an arbitrary object graph
// (typically *AnnotatedDocument or a slice of them); callers must not
// assume a concrete shape.
type Engine interface {
	Extract(ctx context.Context, req Request) (any, error)
}
