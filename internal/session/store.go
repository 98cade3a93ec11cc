// Package session tracks one editing workspace per user: the mode they are
// in, the attached document artifact, pending fixes, and the activity clock
// that drives the warning and expiry sweeps.
package session

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"dochelper/internal/edit"
	"dochelper/internal/logging"
)

// Config holds the three inactivity thresholds. Warning must be shorter
// than both expiry thresholds; sessions holding a document get Expire,
// sessions without one get Idle.
type Config struct {
	Warning time.Duration
	Expire  time.Duration
	Idle    time.Duration
}

type state struct {
	mode         string
	filePath     string
	originalName string
	findText     string
	replaceText  string
	channel      string
	pendingFixes []edit.Fix
	lastActivity time.Time
	warningSent  bool
}

// Session is a point-in-time copy of one user's state.
type Session struct {
	User         string
	Mode         string
	FilePath     string
	OriginalName string
	FindText     string
	ReplaceText  string
	Channel      string
	PendingFixes []edit.Fix
	LastActivity time.Time
	WarningSent  bool
}

// Target names a session selected by a sweep: the user, the notification
// channel (may be empty for expirations), and the time left before expiry.
type Target struct {
	User      string
	Channel   string
	Remaining time.Duration
}

// Store is the session registry. It is safe for concurrent use; every
// method takes the store lock for the whole read-modify-write.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	remove func(string) error
	users  map[string]*state
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces the activity clock, letting tests drive time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRemover replaces the artifact disposer (os.Remove by default).
func WithRemover(remove func(string) error) Option {
	return func(s *Store) {
		s.remove = remove
	}
}

func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		logger: logging.Nop(),
		now:    time.Now,
		remove: os.Remove,
		users:  make(map[string]*state),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Field mutates one session attribute inside an Update call.
type Field func(*state)

func Mode(mode string) Field {
	return func(st *state) { st.mode = mode }
}

func FindText(text string) Field {
	return func(st *state) { st.findText = text }
}

func ReplaceText(text string) Field {
	return func(st *state) { st.replaceText = text }
}

// Create replaces any existing session for the user wholesale. A document
// owned by the replaced session is disposed so it cannot leak.
func (s *Store) Create(user, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.users[user]; ok && old.filePath != "" {
		s.disposeLocked(user, old.filePath)
	}
	s.users[user] = &state{mode: mode, lastActivity: s.now()}
	s.logger.Debug("session.created", "user", user, "mode", mode)
}

// Get returns a snapshot of the user's session. Pure read; the activity
// clock is not touched.
func (s *Store) Get(user string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return Session{}, false
	}
	return snapshot(user, st), true
}

// Update applies the given fields and refreshes activity. Calling it with
// no fields is a plain activity touch. Absent sessions are ignored.
func (s *Store) Update(user string, fields ...Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	for _, f := range fields {
		f(st)
	}
	s.touchLocked(st)
}

// SetFile attaches an uploaded document. At most one file is live per
// session, so a re-upload disposes the prior artifact.
func (s *Store) SetFile(user, path, originalName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	old := st.filePath
	st.filePath = path
	st.originalName = originalName
	s.touchLocked(st)
	if old != "" && old != path {
		s.disposeLocked(user, old)
	}
}

// UpdateFile swaps the session's artifact for a new one, disposing the
// prior file when the path actually changed.
func (s *Store) UpdateFile(user, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	old := st.filePath
	st.filePath = newPath
	s.touchLocked(st)
	if old != "" && old != newPath {
		s.disposeLocked(user, old)
	}
}

func (s *Store) FilePath(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[user]; ok {
		return st.filePath
	}
	return ""
}

func (s *Store) OriginalName(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[user]; ok {
		return st.originalName
	}
	return ""
}

func (s *Store) HasFile(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	return ok && st.filePath != ""
}

// Cleanup disposes the session's artifact and removes the record. Cleaning
// an absent session is a no-op, so expiry sweeps and user-initiated cancels
// can race without harm.
func (s *Store) Cleanup(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	if st.filePath != "" {
		s.disposeLocked(user, st.filePath)
	}
	delete(s.users, user)
	s.logger.Debug("session.cleaned", "user", user)
}

func (s *Store) IsActive(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[user]
	return ok
}

// MarkWarningSent records that a warning went out. It deliberately does not
// refresh activity, otherwise the warning would postpone the expiry it
// warns about.
func (s *Store) MarkWarningSent(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[user]; ok {
		st.warningSent = true
	}
}

func (s *Store) IsWarningSent(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	return ok && st.warningSent
}

// SetChannel records where to send notifications. Not an activity touch.
func (s *Store) SetChannel(user, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[user]; ok {
		st.channel = channel
	}
}

func (s *Store) SetPendingFixes(user string, fixes []edit.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	st.pendingFixes = append([]edit.Fix(nil), fixes...)
	s.touchLocked(st)
}

func (s *Store) PendingFixes(user string) []edit.Fix {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return nil
	}
	return append([]edit.Fix(nil), st.pendingFixes...)
}

func (s *Store) ClearPendingFixes(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return
	}
	st.pendingFixes = nil
	s.touchLocked(st)
}

// SweepWarnings lists sessions past the warning threshold that still have
// time before expiry, have a channel, and have not been warned. Listed
// sessions are marked as warned in the same step so one warning goes out
// per idle stretch.
func (s *Store) SweepWarnings() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Target
	now := s.now()
	for user, st := range s.users {
		if st.warningSent || st.channel == "" {
			continue
		}
		idle := now.Sub(st.lastActivity)
		limit := s.timeoutLocked(st)
		if idle >= s.cfg.Warning && idle < limit {
			st.warningSent = true
			out = append(out, Target{User: user, Channel: st.channel, Remaining: limit - idle})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

// SweepExpirations lists sessions past their applicable expiry threshold,
// channel or not. The caller performs cleanup and notification; the sweep
// itself mutates nothing.
func (s *Store) SweepExpirations() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Target
	now := s.now()
	for user, st := range s.users {
		idle := now.Sub(st.lastActivity)
		if idle >= s.timeoutLocked(st) {
			out = append(out, Target{User: user, Channel: st.channel})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

// TimeoutRemaining reports how long until the session would expire, zero
// for absent or already-expired sessions.
func (s *Store) TimeoutRemaining(user string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[user]
	if !ok {
		return 0
	}
	remaining := s.timeoutLocked(st) - s.now().Sub(st.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) timeoutLocked(st *state) time.Duration {
	if st.filePath != "" {
		return s.cfg.Expire
	}
	return s.cfg.Idle
}

func (s *Store) touchLocked(st *state) {
	st.lastActivity = s.now()
	st.warningSent = false
}

func (s *Store) disposeLocked(user, path string) {
	if err := s.remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("session.artifact_remove_failed", "user", user, "path", path, "error", err)
	}
}

func snapshot(user string, st *state) Session {
	return Session{
		User:         user,
		Mode:         st.mode,
		FilePath:     st.filePath,
		OriginalName: st.originalName,
		FindText:     st.findText,
		ReplaceText:  st.replaceText,
		Channel:      st.channel,
		PendingFixes: append([]edit.Fix(nil), st.pendingFixes...),
		LastActivity: st.lastActivity,
		WarningSent:  st.warningSent,
	}
}
