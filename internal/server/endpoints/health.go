package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/svcctx"
)

// HealthEndpoint reports process liveness. Always 200 while the process
// can serve requests; carries no dependency checks.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/healthz", e.handler
}

func (e *HealthEndpoint) RequiresAuth() bool { return false }

// handler godoc
//
//	@Summary	Liveness probe
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/healthz [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL(), "")
			var result map[string]any
			if err := client.Get(cmd.Context(), "/healthz", &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}

// ReadyEndpoint reports whether the service can usefully accept
// extraction requests: 200 when all secrets are configured, 503 with the
// missing names otherwise.
type ReadyEndpoint struct{}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/readyz", e.handler
}

func (e *ReadyEndpoint) RequiresAuth() bool { return false }

// handler godoc
//
//	@Summary	Readiness probe
//	@Description	Reports whether all required secrets are configured
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	map[string]any
//	@Router		/readyz [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cfg := svcctx.ConfigFrom(r.Context())
	if cfg == nil {
		writeError(w, http.StatusInternalServerError, "service unavailable", "")
		return
	}

	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":   false,
			"missing": missing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check whether the server is ready to serve extractions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL(), "")
			var result map[string]any
			if err := client.Get(cmd.Context(), "/readyz", &result); err != nil {
				// A not-ready server answers 503 with a JSON body; surface
				// the body rather than a bare transport error.
				return fmt.Errorf("server not ready: %w", err)
			}
			return api.Output(result)
		},
	}
}
