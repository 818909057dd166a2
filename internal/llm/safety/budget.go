package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dwizi/intent-arbiter/internal/llm"
)

type Config struct {
	CallsPerWindow int
	Window         time.Duration
}

// Budget caps model calls over a sliding window. Calls over the cap fail
// with llm.ErrRateLimited without reaching the provider.
type Budget struct {
	next  llm.Clarifier
	cfg   Config
	now   func() time.Time
	mu    sync.Mutex
	calls []time.Time
}

// Guard wraps next with a call budget. A nil next stays nil so a disabled
// model is still reported as unavailable.
func Guard(next llm.Clarifier, cfg Config) llm.Clarifier {
	if next == nil {
		return nil
	}
	if cfg.CallsPerWindow < 1 {
		return next
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Budget{next: next, cfg: cfg, now: time.Now}
}

func (b *Budget) Clarify(ctx context.Context, req llm.ClarifyRequest) (llm.ClarifyResponse, error) {
	if !b.consume() {
		return llm.ClarifyResponse{}, fmt.Errorf("%w: %d calls per %s", llm.ErrRateLimited, b.cfg.CallsPerWindow, b.cfg.Window)
	}
	return b.next.Clarify(ctx, req)
}

// Remaining reports how many calls the current window still allows.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = b.trim(b.now().UTC())
	return b.cfg.CallsPerWindow - len(b.calls)
}

func (b *Budget) consume() bool {
	now := b.now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = b.trim(now)
	if len(b.calls) >= b.cfg.CallsPerWindow {
		return false
	}
	b.calls = append(b.calls, now)
	return true
}

func (b *Budget) trim(now time.Time) []time.Time {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.calls[:0]
	for _, stamp := range b.calls {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	return kept
}
