package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/pvachon/zepassd/internal/sink"
)

func TestRunStopsCleanlyOnCanceledContext(t *testing.T) {
	cfg := NewConfig()
	cfg.Simulate = true
	cfg.OutputFile = filepath.Join(t.TempDir(), "passes.jsonl")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, cfg, logger); err != nil {
		t.Errorf("Run on an already-canceled context returned %v, want nil", err)
	}
}

func TestBuildRadioRejectsHardwareWithoutSimulate(t *testing.T) {
	cfg := NewConfig()
	cfg.Simulate = false

	if _, err := buildRadio(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("buildRadio without --simulate returned nil error")
	}
}

func TestBuildSinkFansOutToSqliteWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.OutputFile = filepath.Join(dir, "passes.jsonl")
	cfg.SqlitePath = filepath.Join(dir, "passes.db")

	sk, closeFn, err := buildSink(cfg)
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}
	defer closeFn()

	if _, ok := sk.(*fanoutSink); !ok {
		t.Errorf("buildSink with SqlitePath set returned %T, want *fanoutSink", sk)
	}
}

func TestBuildSinkCloseSurfacesUnderlyingError(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.OutputFile = filepath.Join(dir, "passes.jsonl")

	sk, closeFn, err := buildSink(cfg)
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}

	fileSink, ok := sk.(*sink.FileSink)
	if !ok {
		t.Fatalf("buildSink without SqlitePath returned %T, want *sink.FileSink", sk)
	}

	if err := fileSink.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := closeFn(); err == nil {
		t.Error("closeFn on an already-closed sink returned nil error, want the underlying close failure")
	}
}
