// Package extract implements the gateway's dispatch layer: request
// validation, example compilation, bounded-concurrency admission,
// deadline-guarded engine dispatch, and result normalization.
package extract

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// BadRequestError carries a caller-visible validation failure reason.
// Safe to surface verbatim: it describes caller-controlled input only.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

func badRequestf(format string, args ...any) error {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

// allowedEngineParams is the fixed allow-list of engine tuning keys
// accepted from callers. Values are not range-validated here; the engine
// applies what it understands.
var allowedEngineParams = map[string]struct{}{
	"temperature":       {},
	"vertexai":          {},
	"batch":             {},
	"http_options":      {},
	"top_p":             {},
	"max_output_tokens": {},
	"candidate_count":   {},
	"safety_settings":   {},
}

// Limits holds the configured ceilings enforced by Validate.
type Limits struct {
	MaxTextChars int
	MaxExamples  int
	MaxWorkers   int
}

// ExampleSpec is one loosely-typed few-shot example from the caller.
// Extractions are validated and converted by CompileExamples.
type ExampleSpec struct {
	Text        string           `json:"text"`
	Extractions []map[string]any `json:"extractions"`
}

// Request is a structured extraction request.
type Request struct {
	Text              string         `json:"text"`
	PromptDescription string         `json:"prompt_description"`
	Examples          []ExampleSpec  `json:"examples"`
	ModelID           string         `json:"model_id,omitempty"`
	ExtractionPasses  int            `json:"extraction_passes,omitempty"`
	MaxWorkers        int            `json:"max_workers,omitempty"`
	MaxCharBuffer     int            `json:"max_char_buffer,omitempty"`
	EngineParams      map[string]any `json:"engine_params,omitempty"`
}

// ApplyDefaults fills unset optional fields.
func (r *Request) ApplyDefaults(defaultModelID string) {
	if r.ModelID == "" {
		r.ModelID = defaultModelID
	}
	if r.ExtractionPasses == 0 {
		r.ExtractionPasses = 1
	}
	if r.MaxWorkers == 0 {
		r.MaxWorkers = 10
	}
	if r.MaxCharBuffer == 0 {
		r.MaxCharBuffer = 1000
	}
}

// Validate checks shape rules, then the configured limits in a fixed
// order. The first failing rule short-circuits. Call ApplyDefaults first.
func (r *Request) Validate(limits Limits) error {
	if r.Text == "" {
		return badRequestf("text must not be empty")
	}
	if r.PromptDescription == "" {
		return badRequestf("prompt_description must not be empty")
	}
	if len(r.Examples) == 0 {
		return badRequestf("examples must be a non-empty list")
	}
	for i, ex := range r.Examples {
		if ex.Text == "" {
			return badRequestf("examples[%d].text must not be empty", i)
		}
	}
	if r.ExtractionPasses < 1 || r.ExtractionPasses > 5 {
		return badRequestf("extraction_passes must be between 1 and 5")
	}
	if r.MaxWorkers < 1 || r.MaxWorkers > 20 {
		return badRequestf("max_workers must be between 1 and 20")
	}
	if r.MaxCharBuffer < 100 || r.MaxCharBuffer > 5000 {
		return badRequestf("max_char_buffer must be between 100 and 5000")
	}

	if utf8.RuneCountInString(r.Text) > limits.MaxTextChars {
		return badRequestf("text exceeds MAX_TEXT_CHARS=%d", limits.MaxTextChars)
	}
	if len(r.Examples) > limits.MaxExamples {
		return badRequestf("examples exceed MAX_EXAMPLES=%d", limits.MaxExamples)
	}
	if r.MaxWorkers > limits.MaxWorkers {
		return badRequestf("max_workers exceeds MAX_WORKERS=%d", limits.MaxWorkers)
	}
	if unknown := unknownEngineParams(r.EngineParams); len(unknown) > 0 {
		return badRequestf("unsupported engine_params keys: %v", unknown)
	}

	return nil
}

// unknownEngineParams returns keys outside the allow-list, sorted for
// deterministic error messages.
func unknownEngineParams(params map[string]any) []string {
	var unknown []string
	for k := range params {
		if _, ok := allowedEngineParams[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}
