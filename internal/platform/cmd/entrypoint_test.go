package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type entrypointConfig struct {
	DBPath string `env:"TUTORMARK_CMD_TEST_DB_PATH" envDefault:"data/marker.db"`
}

func TestParseConfigDefaults(t *testing.T) {
	var cfg entrypointConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/marker.db" {
		t.Fatalf("DBPath = %q, want default", cfg.DBPath)
	}
}

func TestParseConfigNilTarget(t *testing.T) {
	if err := ParseConfig[entrypointConfig](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseConfigFromArgs(t *testing.T) {
	t.Setenv("TUTORMARK_CMD_TEST_DB_PATH", "/tmp/env.db")

	var cfg entrypointConfig
	fs := flag.NewFlagSet("marker", flag.ContinueOnError)
	dbPath := fs.String("db-path", "", "override database path")

	if err := ParseConfigFromArgs(&cfg, fs, []string{"-db-path=/tmp/flag.db"}); err != nil {
		t.Fatalf("parse config from args: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("DBPath = %q, want env value", cfg.DBPath)
	}
	if *dbPath != "/tmp/flag.db" {
		t.Fatalf("flag = %q, want /tmp/flag.db", *dbPath)
	}
}

func TestRunWithTelemetryRequiresService(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "  ", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestRunWithTelemetryRunsLoop(t *testing.T) {
	t.Setenv("TUTORMARK_OTEL_ENDPOINT", "")

	want := errors.New("loop done")
	err := RunWithTelemetry(context.Background(), ServiceMarker, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
