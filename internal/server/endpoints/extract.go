package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/engine"
	"github.com/lexgate/lexgate/internal/extract"
	"github.com/lexgate/lexgate/internal/svcctx"
)

// ExtractResponse is the success envelope for extraction requests.
type ExtractResponse struct {
	RequestID string         `json:"request_id"`
	TimingMS  int64          `json:"timing_ms"`
	Result    map[string]any `json:"result"`
}

// ExtractEndpoint handles structured extraction over raw text.
type ExtractEndpoint struct{}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/extract", e.handler
}

func (e *ExtractEndpoint) RequiresAuth() bool { return true }

// handler godoc
//
//	@Summary		Run structured extraction over text
//	@Description	Extracts structured data from text using few-shot examples
//	@Tags			extract
//	@Accept			json
//	@Produce		json
//	@Param			request	body		extract.Request	true	"Extraction request"
//	@Success		200		{object}	ExtractResponse
//	@Failure		400		{object}	api.ErrorResponse
//	@Failure		401		{object}	api.ErrorResponse
//	@Failure		500		{object}	api.ErrorResponse
//	@Router			/v1/extract [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req extract.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	cfg := svcctx.ConfigFrom(r.Context())
	req.ApplyDefaults(cfg.DefaultModelID)
	if err := req.Validate(extract.Limits{
		MaxTextChars: cfg.MaxTextChars,
		MaxExamples:  cfg.MaxExamples,
		MaxWorkers:   cfg.MaxWorkers,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	examples, err := extract.CompileExamples(req.Examples)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	runExtraction(w, r, &req, examples)
}

// runExtraction dispatches a validated request and writes the outcome.
// Shared by the text and PDF endpoints; by this point the two paths are
// identical.
func runExtraction(w http.ResponseWriter, r *http.Request, req *extract.Request, examples []engine.ExampleData) {
	dispatcher := svcctx.DispatcherFrom(r.Context())
	if dispatcher == nil {
		writeError(w, http.StatusInternalServerError, "service unavailable", "")
		return
	}

	outcome := dispatcher.Dispatch(r.Context(), req, examples)
	switch outcome.Kind {
	case extract.OutcomeSuccess:
		writeJSON(w, http.StatusOK, ExtractResponse{
			RequestID: outcome.RequestID,
			TimingMS:  outcome.Elapsed.Milliseconds(),
			Result:    extract.Normalize(outcome.Raw),
		})
	case extract.OutcomeTimeout:
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("request timed out. request_id=%s", outcome.RequestID),
			outcome.RequestID)
	default:
		// Internal error detail stays in the logs; callers get the
		// correlation id only.
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("extraction failed. request_id=%s", outcome.RequestID),
			outcome.RequestID)
	}
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var requestFile string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run a structured extraction over text",
		Long: `Run a structured extraction request against the server.

The request file is the JSON body of POST /v1/extract:

  {
    "text": "...",
    "prompt_description": "...",
    "examples": [{"text": "...", "extractions": [...]}]
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(requestFile)
			if err != nil {
				return fmt.Errorf("failed to read request file: %w", err)
			}
			var body map[string]any
			if err := json.Unmarshal(data, &body); err != nil {
				return fmt.Errorf("request file is not valid JSON: %w", err)
			}

			client := api.NewClient(getServerURL(), apiKeyFromEnv())
			var result ExtractResponse
			if err := client.Post(cmd.Context(), "/v1/extract", body, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}

	cmd.Flags().StringVar(&requestFile, "request", "", "path to a JSON request file (required)")
	if err := cmd.MarkFlagRequired("request"); err != nil {
		panic(err)
	}

	return cmd
}
