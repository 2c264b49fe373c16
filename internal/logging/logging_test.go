package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatConsole, ""} {
		cfg := DefaultConfig()
		cfg.Format = format
		logger, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		logger.Info("test message")
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	if _, err := NewLogger(cfg); err == nil {
		t.Error("expected error for invalid level")
	}

	cfg = DefaultConfig()
	cfg.Format = "xml"
	if _, err := NewLogger(cfg); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("expected no-op logger when none exists in context")
	}
	logger.Info("test message")
}

func TestAddFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx = AddFields(ctx, zap.String(FieldTenantID, "t1"))
	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()[FieldTenantID]; got != "t1" {
		t.Errorf("tenant_id = %v, want t1", got)
	}
}
