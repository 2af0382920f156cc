package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

const dedupPrefixRunes = 64

// Deduplicator suppresses rapid duplicate submissions of the same semantic
// request. It is process-local and best-effort only: correct under
// single-instance execution, and deliberately not a distributed guarantee.
// Multi-instance deployments should swap in a shared TTL store behind the
// same Check contract.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Deduplicator{
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
		seen:   make(map[string]time.Time),
	}
}

// Check records the request key and rejects an identical key observed within
// the window. After the window elapses a repeat succeeds again.
func (d *Deduplicator) Check(userID, sessionID, message string) error {
	key := dedupKey(userID, sessionID, message)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.prune(now)

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return domain.WrapError(domain.ErrDuplicateRequest, "deduplicate request",
			fmt.Errorf("identical request within %s", d.window))
	}
	d.seen[key] = now
	return nil
}

func (d *Deduplicator) prune(now time.Time) {
	for key, last := range d.seen {
		if now.Sub(last) >= d.window {
			delete(d.seen, key)
		}
	}
}

// dedupKey hashes (user, session, message prefix): the prefix bounds key
// size while still catching double submissions of long questions.
func dedupKey(userID, sessionID, message string) string {
	runes := []rune(message)
	if len(runes) > dedupPrefixRunes {
		runes = runes[:dedupPrefixRunes]
	}
	sum := sha256.Sum256([]byte(userID + "|" + sessionID + "|" + string(runes)))
	return hex.EncodeToString(sum[:])
}
