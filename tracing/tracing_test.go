package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")

	if err := Init("facilitor", "0.0.1", fname); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "test", "INTERNAL")
	span.WithAttributes(map[string]string{"k": "v"})
	EndSpan(span, nil)
	_ = ctx

	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("no data written to trace file")
	}
}
