package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

type streamEvent struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Answer  *domain.Answer `json:"answer,omitempty"`
}

// sseSink streams narrative fragments as server-sent events. Headers are
// written lazily on the first event, so pre-stream failures can still use a
// normal JSON error response.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
	failed  bool
}

func newSSESink(w http.ResponseWriter) *sseSink {
	flusher, _ := w.(http.Flusher)
	return &sseSink{w: w, flusher: flusher}
}

func (s *sseSink) Fragment(text string) error {
	return s.emit(streamEvent{Type: "content", Content: text})
}

func (s *sseSink) Complete(answer *domain.Answer) error {
	return s.emit(streamEvent{Type: "complete", Answer: answer})
}

// Finish terminates the stream. Safe to call when nothing was ever sent.
func (s *sseSink) Finish() {
	if !s.opened || s.failed {
		return
	}
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flush()
}

func (s *sseSink) emit(event streamEvent) error {
	if s.failed {
		return fmt.Errorf("sse stream is closed")
	}
	if !s.opened {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.opened = true
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.failed = true
		return err
	}
	s.flush()
	return nil
}

func (s *sseSink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// collectSink discards fragments; the final answer is delivered as one JSON
// document.
type collectSink struct {
	answer *domain.Answer
}

func (s *collectSink) Fragment(string) error {
	return nil
}

func (s *collectSink) Complete(answer *domain.Answer) error {
	s.answer = answer
	return nil
}
