package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/config"
	"github.com/lexgate/lexgate/internal/engine"
	"github.com/lexgate/lexgate/internal/server/endpoints"
)

const testServiceKey = "test-service-key"

type fakePDF struct {
	text string
	err  error
}

func (f *fakePDF) Text(data []byte) (string, error) {
	return f.text, f.err
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ServiceAPIKey = testServiceKey
	cfg.ProviderAPIKey = "test-provider-key"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, eng engine.Engine) *Server {
	t.Helper()
	pdf := &fakePDF{text: "ROMEO meets JULIET on the balcony."}
	srv, err := New(Config{
		ConfigSource: config.Static{Config: cfg},
		Engine:       eng,
		PDF:          pdf,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func validBody() map[string]any {
	return map[string]any{
		"text":               "ROMEO meets JULIET.",
		"prompt_description": "Extract characters",
		"examples": []any{
			map[string]any{
				"text": "HAMLET speaks.",
				"extractions": []any{
					map[string]any{
						"extraction_class": "character",
						"extraction_text":  "HAMLET",
					},
				},
			},
		},
	}
}

func postJSON(t *testing.T, srv *Server, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var errResp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("error body is not JSON: %v (body: %s)", err, rec.Body.String())
	}
	return errResp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testConfig(), &engine.MockEngine{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("body = %v, want ok=true", body)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("all secrets configured", func(t *testing.T) {
		srv := newTestServer(t, testConfig(), &engine.MockEngine{})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing secrets reported by name", func(t *testing.T) {
		cfg := testConfig()
		cfg.ProviderAPIKey = ""
		srv := newTestServer(t, cfg, &engine.MockEngine{})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
		var body struct {
			Ready   bool     `json:"ready"`
			Missing []string `json:"missing"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if body.Ready {
			t.Error("ready = true, want false")
		}
		if len(body.Missing) != 1 || body.Missing[0] != "PROVIDER_API_KEY" {
			t.Errorf("missing = %v, want [PROVIDER_API_KEY]", body.Missing)
		}
	})
}

func TestAuth_InvalidKeyRejectedBeforePayload(t *testing.T) {
	eng := &engine.MockEngine{}
	srv := newTestServer(t, testConfig(), eng)

	tests := []struct {
		name string
		key  string
		body any
	}{
		{"no key valid body", "", validBody()},
		{"wrong key valid body", "wrong-key", validBody()},
		{"wrong key garbage body", "wrong-key", "not even json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv, "/v1/extract", tt.key, tt.body)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
	if eng.Calls() != 0 {
		t.Errorf("engine calls = %d, want 0", eng.Calls())
	}
}

func TestAuth_UnconfiguredServiceKeyFails503(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceAPIKey = ""
	eng := &engine.MockEngine{}
	srv := newTestServer(t, cfg, eng)

	// 503 even when the caller presents a key and a valid payload; the
	// payload is never inspected.
	rec := postJSON(t, srv, "/v1/extract", "any-key", validBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if eng.Calls() != 0 {
		t.Errorf("engine calls = %d, want 0", eng.Calls())
	}
}

func TestExtract_Success(t *testing.T) {
	srv := newTestServer(t, testConfig(), &engine.MockEngine{})

	rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp endpoints.ExtractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty")
	}
	if resp.TimingMS < 0 {
		t.Errorf("timing_ms = %d, want >= 0", resp.TimingMS)
	}
	if _, ok := resp.Result["document"]; !ok {
		t.Errorf("result keys = %v, want document", keysOf(resp.Result))
	}
}

func TestExtract_SequenceResultWrappedAsDocuments(t *testing.T) {
	eng := &engine.MockEngine{
		Result: []*engine.AnnotatedDocument{
			{DocumentID: "doc_1", Text: "a"},
			{DocumentID: "doc_2", Text: "b"},
		},
	}
	srv := newTestServer(t, testConfig(), eng)

	rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp endpoints.ExtractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	docs, ok := resp.Result["documents"].([]any)
	if !ok {
		t.Fatalf("result keys = %v, want documents", keysOf(resp.Result))
	}
	if len(docs) != 2 {
		t.Errorf("len(documents) = %d, want 2", len(docs))
	}
}

func TestExtract_BadJSONBody(t *testing.T) {
	srv := newTestServer(t, testConfig(), &engine.MockEngine{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("{not json"))
	req.Header.Set("X-API-Key", testServiceKey)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExtract_ValidationRejections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTextChars = 50

	tests := []struct {
		name    string
		mutate  func(body map[string]any)
		wantMsg string
	}{
		{
			name: "text over configured ceiling",
			mutate: func(body map[string]any) {
				body["text"] = strings.Repeat("x", 51)
			},
			wantMsg: "text exceeds MAX_TEXT_CHARS=50",
		},
		{
			name: "unknown engine params sorted",
			mutate: func(body map[string]any) {
				body["engine_params"] = map[string]any{
					"zeta_param":  1,
					"alpha_param": 2,
					"temperature": 0.5,
				}
			},
			wantMsg: "unsupported engine_params keys: [alpha_param zeta_param]",
		},
		{
			name: "extraction missing required fields",
			mutate: func(body map[string]any) {
				body["examples"] = []any{
					map[string]any{
						"text": "HAMLET speaks.",
						"extractions": []any{
							map[string]any{"extraction_class": "character"},
						},
					},
				}
			},
			wantMsg: "each extraction in examples must include 'extraction_class' and 'extraction_text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &engine.MockEngine{}
			srv := newTestServer(t, cfg, eng)

			body := validBody()
			tt.mutate(body)
			rec := postJSON(t, srv, "/v1/extract", testServiceKey, body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
			errResp := decodeError(t, rec)
			if errResp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", errResp.Error, tt.wantMsg)
			}
			if eng.Calls() != 0 {
				t.Errorf("engine calls = %d, want 0 for rejected request", eng.Calls())
			}
		})
	}
}

func TestExtract_EngineFailureHidesDetail(t *testing.T) {
	eng := &engine.MockEngine{Err: errors.New("provider exploded: internal stack detail")}
	srv := newTestServer(t, testConfig(), eng)

	rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	errResp := decodeError(t, rec)
	if errResp.RequestID == "" {
		t.Error("request_id is empty on failure response")
	}
	if !strings.Contains(errResp.Error, errResp.RequestID) {
		t.Errorf("error %q does not carry the request id", errResp.Error)
	}
	if strings.Contains(errResp.Error, "exploded") || strings.Contains(errResp.Error, "stack") {
		t.Errorf("error %q leaks internal detail", errResp.Error)
	}
}

func TestExtract_TimeoutCarriesRequestID(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeoutSeconds = 1

	block := make(chan struct{})
	defer close(block)
	eng := &engine.MockEngine{Block: block}
	srv := newTestServer(t, cfg, eng)

	rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	errResp := decodeError(t, rec)
	if !strings.Contains(errResp.Error, "timed out") {
		t.Errorf("error = %q, want timeout message", errResp.Error)
	}
	if errResp.RequestID == "" || !strings.Contains(errResp.Error, errResp.RequestID) {
		t.Errorf("error %q does not carry request_id %q", errResp.Error, errResp.RequestID)
	}
}

func TestExtract_AdmissionSlotsSurviveFailures(t *testing.T) {
	eng := &engine.MockEngine{Err: errors.New("boom")}
	srv := newTestServer(t, testConfig(), eng)

	for i := 0; i < 10; i++ {
		rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("request %d: status = %d, want 500", i, rec.Code)
		}
	}
	if got := srv.Dispatcher().Gate().InFlight(); got != 0 {
		t.Fatalf("in-flight after failures = %d, want 0", got)
	}

	// A healthy engine must still be admitted.
	eng.Err = nil
	rec := postJSON(t, srv, "/v1/extract", testServiceKey, validBody())
	if rec.Code != http.StatusOK {
		t.Errorf("status after recovery = %d, want 200", rec.Code)
	}
}

func pdfForm(t *testing.T, filename string, fileData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(fileData); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func pdfFields() map[string]string {
	return map[string]string{
		"prompt_description": "Extract characters",
		"examples_json":      `[{"text":"HAMLET speaks.","extractions":[{"extraction_class":"character","extraction_text":"HAMLET"}]}]`,
	}
}

func postPDF(t *testing.T, srv *Server, filename string, fileData []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := pdfForm(t, filename, fileData, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/extract-pdf", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testServiceKey)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestExtractPDF_Success(t *testing.T) {
	srv := newTestServer(t, testConfig(), &engine.MockEngine{})

	rec := postPDF(t, srv, "play.pdf", []byte("%PDF-stub"), pdfFields())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp endpoints.ExtractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty")
	}
	if _, ok := resp.Result["document"]; !ok {
		t.Errorf("result keys = %v, want document", keysOf(resp.Result))
	}
}

func TestExtractPDF_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fileData []byte
		fields   map[string]string
		pdfErr   error
		wantMsg  string
	}{
		{
			name:     "non-pdf extension",
			filename: "play.txt",
			fileData: []byte("text"),
			fields:   pdfFields(),
			wantMsg:  "only PDF files are supported",
		},
		{
			name:     "docx extension",
			filename: "play.docx",
			fileData: []byte("text"),
			fields:   pdfFields(),
			wantMsg:  "only PDF files are supported",
		},
		{
			name:     "empty file",
			filename: "play.pdf",
			fileData: nil,
			fields:   pdfFields(),
			wantMsg:  "uploaded file is empty",
		},
		{
			name:     "unreadable pdf",
			filename: "play.pdf",
			fileData: []byte("garbage"),
			fields:   pdfFields(),
			pdfErr:   errors.New("not a valid PDF"),
			wantMsg:  "could not extract text from PDF",
		},
		{
			name:     "invalid examples json",
			filename: "play.pdf",
			fileData: []byte("%PDF-stub"),
			fields: map[string]string{
				"prompt_description": "Extract characters",
				"examples_json":      "{not json",
			},
			wantMsg: "examples_json must be valid JSON",
		},
		{
			name:     "examples json not an array",
			filename: "play.pdf",
			fileData: []byte("%PDF-stub"),
			fields: map[string]string{
				"prompt_description": "Extract characters",
				"examples_json":      `{"text":"x"}`,
			},
			wantMsg: "examples_json must be a non-empty JSON array",
		},
		{
			name:     "non-integer form field",
			filename: "play.pdf",
			fileData: []byte("%PDF-stub"),
			fields: map[string]string{
				"prompt_description": "Extract characters",
				"examples_json":      pdfFields()["examples_json"],
				"max_workers":        "many",
			},
			wantMsg: "max_workers must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &engine.MockEngine{}
			pdf := &fakePDF{text: "extracted text", err: tt.pdfErr}
			srv, err := New(Config{
				ConfigSource: config.Static{Config: testConfig()},
				Engine:       eng,
				PDF:          pdf,
				Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			rec := postPDF(t, srv, tt.filename, tt.fileData, tt.fields)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
			errResp := decodeError(t, rec)
			if errResp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", errResp.Error, tt.wantMsg)
			}
			if eng.Calls() != 0 {
				t.Errorf("engine calls = %d, want 0 for rejected request", eng.Calls())
			}
		})
	}
}

func TestExtractPDF_UppercaseExtensionAccepted(t *testing.T) {
	srv := newTestServer(t, testConfig(), &engine.MockEngine{})

	rec := postPDF(t, srv, "REPORT.PDF", []byte("%PDF-stub"), pdfFields())
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestExtractPDF_TextTruncatedToCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTextChars = 10

	eng := &engine.MockEngine{}
	pdf := &fakePDF{text: strings.Repeat("a", 100)}
	srv, err := New(Config{
		ConfigSource: config.Static{Config: cfg},
		Engine:       eng,
		PDF:          pdf,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Oversized PDFs are clipped, not rejected.
	rec := postPDF(t, srv, "play.pdf", []byte("%PDF-stub"), pdfFields())
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestServerStartupValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no config source: error = nil, want error")
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
