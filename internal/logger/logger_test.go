package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := log.WithContext(context.Background())
	ctx = SetProjectID(ctx, "proj-1")
	ctx = SetOperation(ctx, "publish")

	With(Fields{FieldCount: 3}).Info(ctx, "published %d jobs", 3)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	checks := map[string]interface{}{
		"service":      "test",
		FieldProjectID: "proj-1",
		FieldOperation: "publish",
		FieldCount:     float64(3),
		"message":      "published 3 jobs",
	}
	for key, want := range checks {
		if line[key] != want {
			t.Errorf("field %s = %v, want %v", key, line[key], want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Fatal("expected default logger for bare context")
	}
	if _, ok := FromContext(context.Background()).Data[FieldProjectID]; ok {
		t.Fatal("expected no project id on a bare context")
	}
}

func TestEntryDurationDoesNotMutate(t *testing.T) {
	base := With(Fields{FieldCount: 1})
	timed := base.WithDuration(12)
	if _, ok := base.fields[FieldDurationMs]; ok {
		t.Fatal("WithDuration changed the original entry")
	}
	if timed.fields[FieldDurationMs] != int64(12) || timed.fields[FieldCount] != 1 {
		t.Fatalf("timed fields = %v", timed.fields)
	}
}
