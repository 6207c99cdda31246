package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/errgroup"
)

// OpenAIConfig holds configuration for the provider-backed engine.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string        // Optional; OpenAI-compatible endpoints (tests, compat gateways)
	MaxRetries int           // Retry attempts per chunk request
	RetryDelay time.Duration // Base delay between retries
	Timeout    time.Duration // HTTP timeout per provider request
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// OpenAIEngine implements Engine against an OpenAI-compatible chat
// completions endpoint. It chunks the input, runs chunks under a bounded
// worker group, and merges schema-validated extractions in document order.
type OpenAIEngine struct {
	client     openai.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ Engine = (*OpenAIEngine)(nil)

// NewOpenAIEngine creates a provider-backed engine.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The engine drives retries itself so it can log per-attempt.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEngine{
		client:     openai.NewClient(opts...),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
}

// Extract runs the extraction over the request text. Multiple passes
// re-run the chunks and keep extractions not already seen, trading cost
// for recall.
func (e *OpenAIEngine) Extract(ctx context.Context, req Request) (any, error) {
	passes := req.ExtractionPasses
	if passes < 1 {
		passes = 1
	}
	workers := req.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	chunks := SplitText(req.Text, req.MaxCharBuffer)
	doc := &AnnotatedDocument{
		DocumentID:  "doc_" + uuid.New().String()[:8],
		Text:        req.Text,
		Extractions: []Extraction{},
	}
	seen := make(map[string]bool)

	for pass := 0; pass < passes; pass++ {
		results := make([][]Extraction, len(chunks))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, chunk := range chunks {
			g.Go(func() error {
				exts, err := e.extractChunk(gctx, req, chunk)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				results[i] = exts
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, exts := range results {
			for _, ext := range exts {
				key := ext.ExtractionClass + "\x00" + ext.ExtractionText
				if seen[key] {
					continue
				}
				seen[key] = true
				doc.Extractions = append(doc.Extractions, ext)
			}
		}
	}

	return doc, nil
}

// extractChunk sends one chunk to the provider and parses the response.
func (e *OpenAIEngine) extractChunk(ctx context.Context, req Request, chunk string) ([]Extraction, error) {
	userPrompt, err := RenderUserPrompt(req.Examples, chunk)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.ModelID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(RenderSystemPrompt(req.PromptDescription)),
			openai.UserMessage(userPrompt),
		},
	}
	applyTuningParams(&params, req.Params)

	var content string
	err = retry.Do(
		func() error {
			resp, err := e.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return errors.New("provider returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(e.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("provider request retry", "attempt", n+1, "model_id", req.ModelID, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return ParseExtractions(content)
}

// applyTuningParams maps allow-listed caller params the provider
// understands onto the request. Keys with no OpenAI equivalent
// (vertexai, batch, http_options, safety_settings) are ignored.
func applyTuningParams(params *openai.ChatCompletionNewParams, tuning map[string]any) {
	if v, ok := floatParam(tuning, "temperature"); ok {
		params.Temperature = openai.Float(v)
	}
	if v, ok := floatParam(tuning, "top_p"); ok {
		params.TopP = openai.Float(v)
	}
	if v, ok := floatParam(tuning, "max_output_tokens"); ok {
		params.MaxTokens = openai.Int(int64(v))
	}
	if v, ok := floatParam(tuning, "candidate_count"); ok {
		params.N = openai.Int(int64(v))
	}
}

// floatParam reads a numeric param; JSON decoding yields float64 for all
// numbers, but int is handled for direct construction in tests.
func floatParam(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
