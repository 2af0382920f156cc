package preflight

import (
	"bytes"
	"context"
	"testing"
)

func TestInspectTreatsImagesAsTextless(t *testing.T) {
	inspector := NewPDFInspector()
	raw := []byte{0xff, 0xd8, 0xff, 0xe0}

	pages, hasTextLayer, err := inspector.Inspect(context.Background(), "scan.jpg", bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if pages != 0 || hasTextLayer {
		t.Fatalf("expected (0, false), got (%d, %v)", pages, hasTextLayer)
	}
}

func TestInspectRejectsCorruptPDF(t *testing.T) {
	inspector := NewPDFInspector()
	raw := []byte("not a pdf at all")

	_, _, err := inspector.Inspect(context.Background(), "broken.pdf", bytes.NewReader(raw), int64(len(raw)))
	if err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}

func TestInspectHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := []byte("%PDF-1.4")
	_, _, err := NewPDFInspector().Inspect(ctx, "a.pdf", bytes.NewReader(raw), int64(len(raw)))
	if err == nil {
		t.Fatalf("expected context error")
	}
}
