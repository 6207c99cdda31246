package endpoints

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/extract"
	"github.com/lexgate/lexgate/internal/svcctx"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxUploadMemory = 32 << 20

// ExtractPDFEndpoint handles structured extraction over an uploaded PDF.
// The document text is extracted server-side and then follows the same
// pipeline as /v1/extract.
type ExtractPDFEndpoint struct{}

var _ api.Endpoint = (*ExtractPDFEndpoint)(nil)

func (e *ExtractPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/extract-pdf", e.handler
}

func (e *ExtractPDFEndpoint) RequiresAuth() bool { return true }

// handler godoc
//
//	@Summary		Run structured extraction over a PDF
//	@Description	Extracts text from an uploaded PDF and runs structured extraction
//	@Tags			extract
//	@Accept			mpfd
//	@Produce		json
//	@Param			file				formData	file	true	"PDF file"
//	@Param			prompt_description	formData	string	true	"What to extract"
//	@Param			examples_json		formData	string	true	"JSON array of few-shot examples"
//	@Param			model_id			formData	string	false	"Model ID override"
//	@Param			extraction_passes	formData	int		false	"Number of extraction passes (1-5)"
//	@Param			max_workers			formData	int		false	"Chunk worker bound (1-20)"
//	@Param			max_char_buffer		formData	int		false	"Chunk size in characters (100-5000)"
//	@Success		200	{object}	ExtractResponse
//	@Failure		400	{object}	api.ErrorResponse
//	@Failure		401	{object}	api.ErrorResponse
//	@Failure		500	{object}	api.ErrorResponse
//	@Router			/v1/extract-pdf [post]
func (e *ExtractPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload", "")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported", "")
		return
	}

	req, err := requestFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file", "")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty", "")
		return
	}

	converter := svcctx.PDFFrom(r.Context())
	if converter == nil {
		writeError(w, http.StatusInternalServerError, "service unavailable", "")
		return
	}
	text, err := converter.Text(data)
	if err != nil || text == "" {
		if err != nil {
			loggerFrom(r).Warn("PDF text extraction failed", "filename", header.Filename, "error", err)
		}
		writeError(w, http.StatusBadRequest, "could not extract text from PDF", "")
		return
	}

	cfg := svcctx.ConfigFrom(r.Context())
	req.Text = truncateRunes(text, cfg.MaxTextChars)
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

	runExtraction(w, r, req, examples)
}

// requestFromForm builds an extraction request from the multipart form
// fields accompanying the upload. Text is filled in later from the PDF.
func requestFromForm(r *http.Request) (*extract.Request, error) {
	req := &extract.Request{
		PromptDescription: r.FormValue("prompt_description"),
		ModelID:           r.FormValue("model_id"),
	}

	for field, dst := range map[string]*int{
		"extraction_passes": &req.ExtractionPasses,
		"max_workers":       &req.MaxWorkers,
		"max_char_buffer":   &req.MaxCharBuffer,
	} {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", field)
		}
		*dst = n
	}

	examplesJSON := r.FormValue("examples_json")
	if examplesJSON != "" {
		var decoded any
		if err := json.Unmarshal([]byte(examplesJSON), &decoded); err != nil {
			return nil, fmt.Errorf("examples_json must be valid JSON")
		}
		seq, ok := decoded.([]any)
		if !ok || len(seq) == 0 {
			return nil, fmt.Errorf("examples_json must be a non-empty JSON array")
		}
		if err := json.Unmarshal([]byte(examplesJSON), &req.Examples); err != nil {
			return nil, fmt.Errorf("examples_json must be a JSON array of example objects")
		}
	}

	return req, nil
}

// truncateRunes cuts s to at most n runes. Documents routinely exceed the
// text ceiling; unlike the JSON endpoint, oversized PDFs are clipped
// rather than rejected.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func (e *ExtractPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		pdfFile      string
		prompt       string
		examplesFile string
		modelID      string
	)

	cmd := &cobra.Command{
		Use:   "extract-pdf",
		Short: "Run a structured extraction over a PDF file",
		RunE: func(cmd *cobra.Command, args []string) error {
			examplesJSON, err := os.ReadFile(examplesFile)
			if err != nil {
				return fmt.Errorf("failed to read examples file: %w", err)
			}

			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile("file", filepath.Base(pdfFile))
			if err != nil {
				return err
			}
			f, err := os.Open(pdfFile)
			if err != nil {
				return fmt.Errorf("failed to open PDF file: %w", err)
			}
			defer f.Close()
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			fields := map[string]string{
				"prompt_description": prompt,
				"examples_json":      string(examplesJSON),
				"model_id":           modelID,
			}
			for name, value := range fields {
				if value == "" {
					continue
				}
				if err := mw.WriteField(name, value); err != nil {
					return err
				}
			}
			if err := mw.Close(); err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				getServerURL()+"/v1/extract-pdf", &body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())
			if key := apiKeyFromEnv(); key != "" {
				req.Header.Set("X-API-Key", key)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				var errResp api.ErrorResponse
				if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
					return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
				}
				return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
			}

			var result ExtractResponse
			if err := json.Unmarshal(respBody, &result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return api.Output(result)
		},
	}

	cmd.Flags().StringVar(&pdfFile, "file", "", "path to the PDF file (required)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt description (required)")
	cmd.Flags().StringVar(&examplesFile, "examples", "", "path to a JSON file of examples (required)")
	cmd.Flags().StringVar(&modelID, "model", "", "model ID override")
	for _, flag := range []string{"file", "prompt", "examples"} {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}

	return cmd
}
