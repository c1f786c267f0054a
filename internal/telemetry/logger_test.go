package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("turn complete", "stage", "teaching")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "turn complete" || record["stage"] != "teaching" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if got := CorrelationID(ctx); got != "abc-123" {
		t.Errorf("CorrelationID() = %q", got)
	}

	// Empty id generates one.
	ctx = WithCorrelationID(context.Background(), "")
	if CorrelationID(ctx) == "" {
		t.Error("expected generated correlation id")
	}

	if CorrelationID(context.Background()) != "" {
		t.Error("expected empty id on bare context")
	}
}

func TestSessionLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, slog.LevelInfo)
	ctx := WithCorrelationID(context.Background(), "corr-1")

	SessionLogger(base, ctx, "sess_abc").Info("hello")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if record["session"] != "sess_abc" || record["correlation_id"] != "corr-1" {
		t.Errorf("record = %v", record)
	}
}
