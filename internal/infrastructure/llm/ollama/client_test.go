package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

func TestGenerateStreamForwardsFragmentsAndAccumulates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if stream, _ := payload["stream"].(bool); !stream {
			t.Fatalf("expected stream=true request")
		}
		_, _ = w.Write([]byte(`{"response":"The fire "}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"spread fast."}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed"))

	var fragments []string
	full, err := gen.GenerateStream(context.Background(), "tell me", func(fragment string) error {
		fragments = append(fragments, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if full != "The fire spread fast." {
		t.Fatalf("unexpected accumulated text %q", full)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
}

func TestGenerateStreamSurfacesModelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not loaded"}` + "\n"))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := gen.GenerateStream(context.Background(), "q", nil)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestGenerateStreamStopsOnForwardError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"a"}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"b"}` + "\n"))
		_, _ = w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := gen.GenerateStream(context.Background(), "q", func(string) error {
		return errors.New("sink closed")
	})
	if err == nil || !strings.Contains(err.Error(), "sink closed") {
		t.Fatalf("expected forward error, got %v", err)
	}
}

func TestGenerateMarksServerFailureTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := gen.GenerateStream(context.Background(), "q", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary classification, got %v", err)
	}
}

func TestGenerateReturnsTrimmedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"  plain answer  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed"))
	text, err := gen.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "plain answer" {
		t.Fatalf("unexpected text %q", text)
	}
}
