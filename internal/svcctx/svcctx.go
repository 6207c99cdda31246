// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/lexgate/lexgate/internal/config"
	"github.com/lexgate/lexgate/internal/extract"
	"github.com/lexgate/lexgate/internal/pdfx"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Dispatcher *extract.Dispatcher
	Config     config.Source
	PDF        pdfx.Converter
	Logger     *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DispatcherFrom extracts the dispatcher from context.
func DispatcherFrom(ctx context.Context) *extract.Dispatcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Dispatcher
	}
	return nil
}

// ConfigFrom extracts the current configuration snapshot from context.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil && s.Config != nil {
		return s.Config.Get()
	}
	return nil
}

// PDFFrom extracts the PDF converter from context.
func PDFFrom(ctx context.Context) pdfx.Converter {
	if s := ServicesFrom(ctx); s != nil {
		return s.PDF
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
