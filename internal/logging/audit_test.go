package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []AuditEvent {
	t.Helper()
	var events []AuditEvent
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("json.Unmarshal(%q): %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAuditLoggerEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewAuditLogger("api", WithoutStdout(), WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	logger.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600)) }

	passID := NewPassID()
	event := AuditEvent{
		EventType: EventEncrypt,
		PassID:    passID,
		Decision:  DecisionAllow,
		Metadata: map[string]any{
			"mode":   "citadel",
			"blocks": 2,
			"key":    "3 5 2 7",
			"IV":     "1 21",
			"text":   "HELP",
		},
	}
	if err := logger.Emit(event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	events := decodeLines(t, buf)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.Component != "api" || got.EventType != EventEncrypt || got.PassID != passID {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.Timestamp.Equal(time.Date(2024, 5, 6, 6, 8, 9, 0, time.UTC)) || got.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not normalised to UTC: %v", got.Timestamp)
	}
	for _, k := range []string{"key", "IV", "text"} {
		if got.Metadata[k] != redacted {
			t.Errorf("metadata %s = %v, want redacted", k, got.Metadata[k])
		}
	}
	if got.Metadata["mode"] != "citadel" {
		t.Errorf("mode should survive redaction, got %v", got.Metadata["mode"])
	}
	if strings.Contains(buf.String(), "3 5 2 7") || strings.Contains(buf.String(), "HELP") {
		t.Fatalf("key material leaked: %s", buf.String())
	}
	if event.Metadata["key"] != "3 5 2 7" {
		t.Fatal("Emit must not mutate the caller's metadata")
	}
}

func TestWithComponentSharesSinks(t *testing.T) {
	buf := &bytes.Buffer{}
	root, err := NewAuditLogger("citadeld", WithoutStdout(), WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	child := root.WithComponent("rpc")
	if err := child.Emit(AuditEvent{EventType: EventServerLifecycle, Reason: "listening"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := child.Close(); err != nil {
		t.Fatalf("child Close: %v", err)
	}
	if err := root.Emit(AuditEvent{EventType: EventServerLifecycle, Reason: "stopping"}); err != nil {
		t.Fatalf("root Emit after child Close: %v", err)
	}

	events := decodeLines(t, buf)
	if len(events) != 2 || events[0].Component != "rpc" || events[1].Component != "citadeld" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger("cli", WithoutStdout(), WithFile(path))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	if err := logger.Emit(AuditEvent{EventType: EventKeyRejected, Decision: DecisionDeny, Reason: "determinant 6 shares a factor with 26"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"key_rejected"`) {
		t.Fatalf("unexpected file contents: %s", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("audit file permissions = %v", perm)
	}
}

func TestNewAuditLoggerRequiresWriter(t *testing.T) {
	if _, err := NewAuditLogger("x", WithoutStdout()); err == nil {
		t.Fatal("expected error with no writers")
	}
	if _, err := NewAuditLogger("x", WithWriter(nil)); err == nil {
		t.Fatal("expected error for nil writer")
	}
	if _, err := NewAuditLogger("x", WithFile(" ")); err == nil {
		t.Fatal("expected error for empty path")
	}
}
