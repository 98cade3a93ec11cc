// Package editworker runs document mutations off the request path with the
// ordering the session model needs: at most one in-flight edit per user,
// FIFO for a user's queued edits, and a bounded number of edits running
// across all users.
package editworker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dochelper/internal/logging"
)

const defaultConcurrency = 4

var ErrClosed = errors.New("edit worker closed")

type userLock struct {
	ch   chan struct{}
	refs int
}

type Pool struct {
	logger *slog.Logger
	slots  chan struct{}
	mu     sync.Mutex
	users  map[string]*userLock
	wg     sync.WaitGroup
	closed bool
}

type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

func New(concurrency int, opts ...Option) *Pool {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	p := &Pool{
		logger: logging.Nop(),
		slots:  make(chan struct{}, concurrency),
		users:  make(map[string]*userLock),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs fn exclusively for the user, queueing behind any in-flight edit
// of theirs and behind the global concurrency cap. Waiting respects ctx;
// once fn starts it runs to completion.
func (p *Pool) Do(ctx context.Context, user string, fn func() error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	lock := p.users[user]
	if lock == nil {
		lock = &userLock{ch: make(chan struct{}, 1)}
		p.users[user] = lock
	}
	lock.refs++
	p.mu.Unlock()
	defer p.wg.Done()
	defer p.releaseUser(user, lock)

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		p.logger.Debug("editworker.wait_canceled", "user", user, "stage", "user_lock")
		return ctx.Err()
	}
	defer func() { <-lock.ch }()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.logger.Debug("editworker.wait_canceled", "user", user, "stage", "slot")
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	p.logger.Debug("editworker.run", "user", user)
	return fn()
}

func (p *Pool) releaseUser(user string, lock *userLock) {
	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.users, user)
	}
	p.mu.Unlock()
}

// Close rejects new work and waits for everything in flight.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Debug("editworker.closed")
}
