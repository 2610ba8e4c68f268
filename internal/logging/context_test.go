package logging

import (
	"context"
	"regexp"
	"testing"
)

func TestOperationIDHelpers(t *testing.T) {
	ctx := context.Background()
	if GetOperationID(ctx) != "" {
		t.Fatalf("expected empty operation id")
	}

	ctx = WithOperationID(ctx, "oid")
	if GetOperationID(ctx) != "oid" {
		t.Fatalf("expected operation id to be set")
	}

	if MustGetOperationID(ctx) != "oid" {
		t.Fatalf("expected existing operation id to be returned")
	}

	newID := MustGetOperationID(context.Background())
	if newID == "" {
		t.Fatalf("expected generated operation id")
	}
}

func TestTransactionIDHelpers(t *testing.T) {
	ctx := context.Background()
	if GetTransactionID(ctx) != "" {
		t.Fatalf("expected empty transaction id")
	}

	ctx = WithTransactionID(ctx, "tid")
	if GetTransactionID(ctx) != "tid" {
		t.Fatalf("expected transaction id to be set")
	}
}

func TestOperationParentIDHelpers(t *testing.T) {
	ctx := context.Background()
	if GetOperationParentID(ctx) != "" {
		t.Fatalf("expected empty parent id")
	}

	ctx = WithOperationParentID(ctx, "pid")
	if GetOperationParentID(ctx) != "pid" {
		t.Fatalf("expected parent id to be set")
	}
}

func TestGenerateID(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	id := GenerateID()
	if !pattern.MatchString(id) {
		t.Fatalf("expected 32 lowercase hex characters, got %q", id)
	}
	if GenerateID() == id {
		t.Fatalf("expected distinct ids")
	}
}
