package svcctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/bookRa/ragpipe/internal/batch"
	"github.com/bookRa/ragpipe/internal/runs"
)

func TestServicesRoundTrip(t *testing.T) {
	store := batch.NewMemoryStore()
	reg := runs.NewRegistry(runs.NewMemoryStore())
	logger := slog.Default()

	svc := &Services{
		BatchStore: store,
		Runs:       reg,
		Logger:     logger,
	}
	ctx := WithServices(context.Background(), svc)

	if got := ServicesFrom(ctx); got != svc {
		t.Error("ServicesFrom did not return the attached services")
	}
	if got := BatchStoreFrom(ctx); got != batch.Store(store) {
		t.Error("BatchStoreFrom did not return the attached store")
	}
	if got := RunsFrom(ctx); got != reg {
		t.Error("RunsFrom did not return the attached registry")
	}
	if got := LoggerFrom(ctx); got != logger {
		t.Error("LoggerFrom did not return the attached logger")
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()

	if ServicesFrom(ctx) != nil {
		t.Error("ServicesFrom(empty) should be nil")
	}
	if CoordinatorFrom(ctx) != nil {
		t.Error("CoordinatorFrom(empty) should be nil")
	}
	if BatchStoreFrom(ctx) != nil {
		t.Error("BatchStoreFrom(empty) should be nil")
	}
	if HomeFrom(ctx) != nil {
		t.Error("HomeFrom(empty) should be nil")
	}
	// Logger falls back to the default rather than nil.
	if LoggerFrom(ctx) == nil {
		t.Error("LoggerFrom(empty) should fall back to the default logger")
	}
}
