package gateway

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"dochelper/internal/errinfo"
)

const throttleCleanupEvery = 5 * time.Minute

// throttle enforces a minimum interval between requests per user. Entries
// idle for several intervals are dropped opportunistically so the map stays
// bounded.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     map[string]time.Time
	cleaned  time.Time
}

func newThrottle(interval time.Duration) *throttle {
	t := &throttle{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
	t.cleaned = t.now()
	return t
}

// allow records the request when it is far enough from the previous one.
func (t *throttle) allow(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if now.Sub(t.cleaned) >= throttleCleanupEvery {
		t.cleaned = now
		for u, seen := range t.last {
			if now.Sub(seen) > throttleCleanupEvery {
				delete(t.last, u)
			}
		}
	}
	if seen, ok := t.last[user]; ok && now.Sub(seen) < t.interval {
		return false
	}
	t.last[user] = now
	return true
}

func (t *throttle) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if t.interval <= 0 {
			return c.Next()
		}
		if !t.allow(c.Params("user")) {
			return errinfo.RateLimited(errinfo.PhaseSession)
		}
		return c.Next()
	}
}
