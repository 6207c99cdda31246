// Package endpoints defines all API endpoints, each implementing both an
// HTTP route and a matching CLI command.
package endpoints

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/svcctx"
)

// All returns every endpoint in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&ExtractEndpoint{},
		&ExtractPDFEndpoint{},
	}
}

// apiKeyFromEnv returns the caller credential for CLI commands.
func apiKeyFromEnv() string {
	return os.Getenv("LEXGATE_SERVICE_API_KEY")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError emits the standard error envelope. requestID may be empty;
// when set it is echoed so callers can correlate server-side logs.
func writeError(w http.ResponseWriter, status int, msg, requestID string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg, RequestID: requestID})
}

func loggerFrom(r *http.Request) *slog.Logger {
	if log := svcctx.LoggerFrom(r.Context()); log != nil {
		return log
	}
	return slog.Default()
}
