// Package svcctx provides service context for dependency injection via context.
// Keeping it separate from the wiring code avoids import cycles between
// commands and the components they call.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/bookRa/ragpipe/internal/batch"
	"github.com/bookRa/ragpipe/internal/config"
	"github.com/bookRa/ragpipe/internal/home"
	"github.com/bookRa/ragpipe/internal/providers"
	"github.com/bookRa/ragpipe/internal/runs"
)

// Services holds the core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Coordinator *batch.Coordinator
	BatchStore  batch.Store
	Runs        *runs.Registry
	Registry    *providers.Registry
	Config      *config.Manager
	Logger      *slog.Logger
	Home        *home.Dir
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

// CoordinatorFrom extracts the batch coordinator from context.
func CoordinatorFrom(ctx context.Context) *batch.Coordinator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Coordinator
	}
	return nil
}

// BatchStoreFrom extracts the batch store from context.
func BatchStoreFrom(ctx context.Context) batch.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.BatchStore
	}
	return nil
}

// RunsFrom extracts the run registry from context.
func RunsFrom(ctx context.Context) *runs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runs
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to the default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
