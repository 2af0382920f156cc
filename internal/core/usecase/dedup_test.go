package usecase

import (
	"testing"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

func TestDedupRejectsIdenticalRequestWithinWindow(t *testing.T) {
	dedup := NewDeduplicator(10 * time.Second)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	dedup.now = func() time.Time { return base }

	if err := dedup.Check("u1", "s1", "who founded the mill"); err != nil {
		t.Fatalf("first request must pass, got %v", err)
	}

	dedup.now = func() time.Time { return base.Add(3 * time.Second) }
	err := dedup.Check("u1", "s1", "who founded the mill")
	if !domain.IsKind(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestDedupAllowsRepeatAfterWindow(t *testing.T) {
	dedup := NewDeduplicator(10 * time.Second)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	dedup.now = func() time.Time { return base }

	if err := dedup.Check("u1", "s1", "who founded the mill"); err != nil {
		t.Fatalf("first request must pass, got %v", err)
	}

	dedup.now = func() time.Time { return base.Add(11 * time.Second) }
	if err := dedup.Check("u1", "s1", "who founded the mill"); err != nil {
		t.Fatalf("repeat after window must pass, got %v", err)
	}
}

func TestDedupDistinguishesUsersAndSessions(t *testing.T) {
	dedup := NewDeduplicator(10 * time.Second)

	if err := dedup.Check("u1", "s1", "question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dedup.Check("u2", "s1", "question"); err != nil {
		t.Fatalf("different user must pass, got %v", err)
	}
	if err := dedup.Check("u1", "s2", "question"); err != nil {
		t.Fatalf("different session must pass, got %v", err)
	}
}

func TestDedupKeyUsesMessagePrefix(t *testing.T) {
	dedup := NewDeduplicator(10 * time.Second)

	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'a')
	}
	first := string(long) + " tail one"
	second := string(long) + " tail two"

	if err := dedup.Check("u1", "s1", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same 64-rune prefix counts as the same semantic request.
	err := dedup.Check("u1", "s1", second)
	if !domain.IsKind(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected prefix-based rejection, got %v", err)
	}
}
