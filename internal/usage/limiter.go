// Package usage bounds how often each user may trigger analysis calls.
// Every user carries an ordered list of request timestamps inside a rolling
// window; entries age out lazily on each check or record.
package usage

import (
	"log/slog"
	"sync"
	"time"

	"dochelper/internal/logging"
)

// Status qualifies a CanUse answer beyond the boolean.
type Status string

const (
	StatusOK          Status = ""
	StatusApproaching Status = "approaching"
	StatusReached     Status = "reached"
)

type Config struct {
	Limit  int
	WarnAt int
	Window time.Duration
}

type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	users      map[string][]time.Time
	lastSweep  time.Time
	sweepEvery time.Duration
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:        cfg,
		logger:     logging.Nop(),
		now:        time.Now,
		users:      make(map[string][]time.Time),
		sweepEvery: time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// CanUse reports whether the user may trigger another call, how many calls
// remain, and whether they are approaching or at the limit. Stale users are
// opportunistically swept at most once per sweep interval.
func (l *Limiter) CanUse(user string) (bool, int, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.maybeSweepLocked(now)

	used := len(l.pruneLocked(user, now))
	remaining := l.cfg.Limit - used
	if remaining <= 0 {
		return false, 0, StatusReached
	}
	if used >= l.cfg.WarnAt {
		return true, remaining, StatusApproaching
	}
	return true, remaining, StatusOK
}

// RecordUse appends a request timestamp and returns the remaining quota,
// clamped at zero.
func (l *Limiter) RecordUse(user string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	list := append(l.pruneLocked(user, now), now)
	l.users[user] = list
	remaining := l.cfg.Limit - len(list)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (l *Limiter) Usage(user string) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(user, l.now())), l.cfg.Limit
}

// NextExpiry reports when the user's oldest surviving request leaves the
// window; the zero time when nothing is recorded.
func (l *Limiter) NextExpiry(user string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.pruneLocked(user, l.now())
	if len(list) == 0 {
		return time.Time{}
	}
	return list[0].Add(l.cfg.Window)
}

// Sweep drops users whose entire timestamp list has expired, bounding the
// registry's memory. The service calls it hourly.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(l.now())
}

func (l *Limiter) maybeSweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	l.sweepLocked(now)
}

func (l *Limiter) sweepLocked(now time.Time) {
	removed := 0
	for user := range l.users {
		if len(l.pruneLocked(user, now)) == 0 {
			delete(l.users, user)
			removed++
		}
	}
	l.lastSweep = now
	if removed > 0 {
		l.logger.Debug("usage.sweep", "removed", removed, "tracked", len(l.users))
	}
}

func (l *Limiter) pruneLocked(user string, now time.Time) []time.Time {
	list := l.users[user]
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(list) && !list[i].After(cutoff) {
		i++
	}
	if i > 0 {
		list = list[i:]
		l.users[user] = list
	}
	return list
}
