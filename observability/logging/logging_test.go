package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoggerUsesCanonicalKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "contractoriumd", Env: "test", Level: "debug"})
	logger.Debug("claim settled", slog.Uint64("claimId", 7), MaskField("note", "secret details"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing key %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" || line["message"] != "claim settled" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["note"] != RedactedValue {
		t.Fatalf("note must be redacted, got %v", line["note"])
	}
}

func TestMaskFieldAllowlist(t *testing.T) {
	if attr := MaskField("claimId", "9"); attr.Value.String() != "9" {
		t.Fatalf("allowlisted key masked")
	}
	if attr := MaskField("authorization", "Bearer x"); attr.Value.String() != RedactedValue {
		t.Fatalf("sensitive key not masked")
	}
	if attr := MaskField("note", ""); attr.Value.String() != "" {
		t.Fatalf("empty value should pass through")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}

func TestSetupWithFileRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, closer := SetupWithOptions(Options{Service: "contractoriumd", File: path})
	logger.Info("started")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if matches, _ := filepath.Glob(path); len(matches) != 1 {
		t.Fatalf("expected log file at %s", path)
	}
}
