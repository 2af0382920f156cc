package localfs

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := New(t.TempDir(), NewURLSigner("http://localhost:8080", "test-secret"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return storage
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Save(context.Background(), "scans/a/register.pdf", strings.NewReader("contents")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := storage.Open(context.Background(), "scans/a/register.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	raw, _ := io.ReadAll(rc)
	if string(raw) != "contents" {
		t.Fatalf("unexpected contents %q", raw)
	}
}

func TestRejectsPathEscapingKeys(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Save(context.Background(), "../outside", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if _, err := storage.Open(context.Background(), "/etc/passwd"); err == nil {
		t.Fatalf("expected absolute key to be rejected")
	}
}

func TestSignedReadURLVerifies(t *testing.T) {
	signer := NewURLSigner("http://localhost:8080", "test-secret")
	storage, err := New(t.TempDir(), signer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	signed, err := storage.SignedReadURL("scans/a.pdf", 5*time.Minute)
	if err != nil {
		t.Fatalf("SignedReadURL() error = %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	key := strings.TrimPrefix(parsed.Path, "/v1/files/")
	key, _ = url.PathUnescape(key)
	exp := parsed.Query().Get("exp")
	sig := parsed.Query().Get("sig")

	if err := signer.Verify(key, exp, sig, time.Now()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := signer.Verify(key, exp, sig, time.Now().Add(10*time.Minute)); err == nil {
		t.Fatalf("expected expired link to be rejected")
	}
	if err := signer.Verify("scans/other.pdf", exp, sig, time.Now()); err == nil {
		t.Fatalf("expected mismatched key to be rejected")
	}
}
