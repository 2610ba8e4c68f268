package logging

import (
	"strings"
	"testing"
)

func TestAuditEventLifecycle(t *testing.T) {
	event := NewAuditEvent(APIAccess, "GET /correlation", StatusSuccess).
		WithIPAddress("127.0.0.1").
		WithResource("/correlation").
		WithSeverity(SeverityInfo).
		WithCorrelation("op-1", "tx-1", "parent-1").
		WithDetails(map[string]interface{}{"k": "v"})

	if event.IPAddress != "127.0.0.1" || event.Resource != "/correlation" {
		t.Fatalf("expected ip and resource to be set")
	}
	if event.Severity != SeverityInfo {
		t.Fatalf("expected severity to be set")
	}
	if event.OperationID != "op-1" || event.TransactionID != "tx-1" || event.OperationParentID != "parent-1" {
		t.Fatalf("expected correlation triple to be set")
	}

	event.WithError("boom")
	if event.Status != StatusFailure {
		t.Fatalf("expected status to be failure")
	}
	if event.ErrorMessage != "boom" {
		t.Fatalf("expected error message")
	}

	jsonStr := event.ToJSON()
	if !strings.Contains(jsonStr, "GET /correlation") {
		t.Fatalf("expected json output to contain action")
	}

	parsed, err := ParseAuditEvent(jsonStr)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.Action != event.Action {
		t.Fatalf("expected parsed action to match")
	}
	if parsed.OperationID != "op-1" {
		t.Fatalf("expected parsed operation id to match")
	}
}

func TestAuditEventJSONErrors(t *testing.T) {
	event := NewAuditEvent(APIAccess, "call", StatusSuccess)
	event.Details = map[string]interface{}{"bad": func() {}}
	jsonStr := event.ToJSON()
	if !strings.Contains(jsonStr, "failed to marshal audit event") {
		t.Fatalf("expected marshal failure message")
	}

	if _, err := ParseAuditEvent("{invalid json"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestWithErrorDefaultsSeverity(t *testing.T) {
	event := NewAuditEvent(ConfigChange, "update", StatusSuccess)
	event.Severity = ""
	event.WithError("bad")
	if event.Severity != SeverityError {
		t.Fatalf("expected severity error")
	}
}

func TestNewAuditEventGeneratesIdentity(t *testing.T) {
	event := NewAuditEvent(CorrelationReject, "POST /ingest", StatusFailure)
	if event.ID == "" {
		t.Fatalf("expected generated event id")
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
	if event.EventType != CorrelationReject {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
}
