// Package engine is the flow controller: it wires the session store, usage
// limiter, storage manager, worker pool, and analysis brain behind one
// surface keyed by user. Every operation touches the user's session, so
// activity timers refresh as a side effect of use.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dochelper/internal/anthropic"
	"dochelper/internal/brain"
	"dochelper/internal/config"
	"dochelper/internal/diff"
	"dochelper/internal/docx"
	"dochelper/internal/edit"
	"dochelper/internal/editworker"
	"dochelper/internal/errinfo"
	"dochelper/internal/llm"
	"dochelper/internal/logging"
	"dochelper/internal/session"
	"dochelper/internal/storage"
	"dochelper/internal/usage"
)

type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Store
	limiter  *usage.Limiter
	store    *storage.Manager
	pool     *editworker.Pool
	brain    *brain.Brain
	notifier Notifier
	now      func() time.Time

	lastUsageSweep time.Time
}

type Option func(*options)

type options struct {
	logger   *slog.Logger
	client   llm.Client
	notifier Notifier
	now      func() time.Time
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClient overrides the completion provider, bypassing the configured
// Anthropic client. Tests inject stubs here.
func WithClient(client llm.Client) Option {
	return func(o *options) { o.client = client }
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock replaces the clock driving session timeouts, the usage window,
// and the sweeps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &options{logger: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	store, err := storage.New(cfg.DownloadDir, cfg.MaxFileSizeBytes,
		storage.WithLogger(o.logger.With("component", "storage")))
	if err != nil {
		return nil, err
	}

	client := o.client
	if client == nil {
		switch {
		case cfg.FakeAI:
			client = brain.NewFakeClient()
			o.logger.Warn("engine.fake_ai_enabled")
		case cfg.AnthropicAPIKey != "":
			client = anthropic.NewClient(cfg.AnthropicAPIKey)
		}
	}
	notifier := o.notifier
	if notifier == nil {
		notifier = &LogNotifier{Logger: o.logger.With("component", "notify")}
	}

	e := &Engine{
		cfg:    cfg,
		logger: o.logger,
		sessions: session.NewStore(
			session.Config{Warning: cfg.SessionWarning, Expire: cfg.SessionExpire, Idle: cfg.IdleTimeout},
			session.WithLogger(o.logger.With("component", "session")),
			session.WithClock(o.now),
			session.WithRemover(store.Remove),
		),
		limiter: usage.New(
			usage.Config{Limit: cfg.UsageLimit, WarnAt: cfg.UsageWarnAt, Window: cfg.UsageWindow},
			usage.WithLogger(o.logger.With("component", "usage")),
			usage.WithClock(o.now),
		),
		store:          store,
		pool:           editworker.New(cfg.WorkerConcurrency, editworker.WithLogger(o.logger.With("component", "editworker"))),
		notifier:       notifier,
		now:            o.now,
		lastUsageSweep: o.now(),
	}
	if client != nil {
		e.brain = brain.New(client, cfg, brain.WithLogger(o.logger.With("component", "brain")))
	}
	e.logger.Info("engine.init",
		"download_dir", cfg.DownloadDir,
		"provider_configured", client != nil,
		"worker_concurrency", cfg.WorkerConcurrency,
	)
	return e, nil
}

// Sessions exposes the session store for surfaces that only need reads.
func (e *Engine) Sessions() *session.Store { return e.sessions }

// Close drains in-flight document mutations.
func (e *Engine) Close() {
	e.pool.Close()
}

// Status is the session snapshot returned to the flow surface.
type Status struct {
	User             string `json:"user"`
	Mode             string `json:"mode"`
	HasFile          bool   `json:"has_file"`
	OriginalName     string `json:"original_name,omitempty"`
	PendingFixes     int    `json:"pending_fixes"`
	TimeoutRemaining int    `json:"timeout_remaining_seconds"`
	UsageUsed        int    `json:"usage_used"`
	UsageLimit       int    `json:"usage_limit"`
}

func (e *Engine) StartSession(user, mode, channel string) Status {
	e.sessions.Create(user, mode)
	if channel != "" {
		e.sessions.SetChannel(user, channel)
	}
	e.logger.Info("engine.session_started", "user", user, "mode", mode)
	st, _ := e.SessionStatus(user)
	return st
}

func (e *Engine) SessionStatus(user string) (Status, error) {
	snap, ok := e.sessions.Get(user)
	if !ok {
		return Status{}, errinfo.SessionNotFound(errinfo.PhaseSession)
	}
	used, limit := e.limiter.Usage(user)
	return Status{
		User:             user,
		Mode:             snap.Mode,
		HasFile:          snap.FilePath != "",
		OriginalName:     snap.OriginalName,
		PendingFixes:     len(snap.PendingFixes),
		TimeoutRemaining: int(e.sessions.TimeoutRemaining(user) / time.Second),
		UsageUsed:        used,
		UsageLimit:       limit,
	}, nil
}

// Cancel discards the session and its artifact. Cancelling twice, or a
// session the sweeper already expired, is a no-op.
func (e *Engine) Cancel(user string) {
	e.sessions.Cleanup(user)
}

// AttachDocument validates an upload, persists it under a unique name, and
// makes it the session's document.
func (e *Engine) AttachDocument(user, name string, data []byte) (Status, error) {
	if !e.sessions.IsActive(user) {
		return Status{}, errinfo.SessionNotFound(errinfo.PhaseUpload)
	}
	if err := e.store.ValidateUpload(name, data); err != nil {
		return Status{}, err
	}
	path, err := e.store.SaveUpload(name, data)
	if err != nil {
		return Status{}, err
	}
	clean := storage.SanitizeName(name)
	e.sessions.SetFile(user, path, clean)
	e.logger.Info("engine.document_attached", "user", user, "name", clean, "bytes", len(data))
	return e.SessionStatus(user)
}

// OccurrenceView is one located match plus the windowed preview shown when
// the sentence is too long to display whole.
type OccurrenceView struct {
	edit.Occurrence
	Preview string `json:"preview"`
}

type FindResult struct {
	Search      string           `json:"search"`
	Found       bool             `json:"found"`
	Count       int              `json:"count"`
	Occurrences []OccurrenceView `json:"occurrences"`
}

func (e *Engine) FindText(user, search string) (FindResult, error) {
	doc, err := e.openSessionDocument(user, errinfo.PhaseFind)
	if err != nil {
		return FindResult{}, err
	}
	e.sessions.Update(user, session.FindText(search))

	occs := edit.Locate(doc, search)
	views := make([]OccurrenceView, 0, len(occs))
	for _, occ := range occs {
		views = append(views, OccurrenceView{Occurrence: occ, Preview: diff.Window(occ.Sentence, search)})
	}
	return FindResult{Search: search, Found: len(occs) > 0, Count: len(occs), Occurrences: views}, nil
}

// PreviewEntry shows one occurrence before and after a proposed replacement
// as an inline span diff. Nothing is mutated.
type PreviewEntry struct {
	Index          int         `json:"index"`
	ContainerIndex int         `json:"container_index"`
	Before         string      `json:"before"`
	After          string      `json:"after"`
	Spans          []diff.Span `json:"spans"`
}

type PreviewResult struct {
	Search  string         `json:"search"`
	Replace string         `json:"replace"`
	Found   bool           `json:"found"`
	Count   int            `json:"count"`
	Entries []PreviewEntry `json:"entries"`
}

func (e *Engine) PreviewReplace(user, search, replace string) (PreviewResult, error) {
	doc, err := e.openSessionDocument(user, errinfo.PhaseReplace)
	if err != nil {
		return PreviewResult{}, err
	}
	e.sessions.Update(user, session.FindText(search), session.ReplaceText(replace))

	occs := edit.Locate(doc, search)
	entries := make([]PreviewEntry, 0, len(occs))
	for _, occ := range occs {
		after := strings.ReplaceAll(occ.Sentence, search, replace)
		entries = append(entries, PreviewEntry{
			Index:          occ.Index,
			ContainerIndex: occ.ContainerIndex,
			Before:         diff.Window(occ.Sentence, search),
			After:          diff.Window(after, replace),
			Spans:          diff.Sentence(occ.Sentence, after),
		})
	}
	return PreviewResult{Search: search, Replace: replace, Found: len(occs) > 0, Count: len(occs), Entries: entries}, nil
}

type ReplaceResult struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
	Found   bool   `json:"found"`
	Count   int    `json:"count"`
}

// ReplaceText substitutes across the whole document on the worker pool. A
// search that appears nowhere is a found=false result, not an error; a new
// artifact is persisted and swapped in only when something changed.
func (e *Engine) ReplaceText(ctx context.Context, user, search, replace string) (ReplaceResult, error) {
	if _, errInfo := e.sessionFilePath(user, errinfo.PhaseReplace); errInfo != nil {
		return ReplaceResult{}, errInfo
	}
	if search == "" || search == replace {
		return ReplaceResult{Search: search, Replace: replace}, nil
	}
	e.sessions.Update(user, session.FindText(search), session.ReplaceText(replace))

	res := ReplaceResult{Search: search, Replace: replace}
	err := e.pool.Do(ctx, user, func() error {
		// Re-resolve under the user's turn: a queued edit must see the
		// artifact its predecessor produced, not the one it was queued with.
		path, errInfo := e.sessionFilePath(user, errinfo.PhaseReplace)
		if errInfo != nil {
			return errInfo
		}
		doc, err := docx.Open(path)
		if err != nil {
			e.logger.Error("engine.replace_open_failed", "user", user, "error", err)
			return errinfo.FileReadFailed(errinfo.PhaseReplace, err.Error())
		}
		count := 0
		for _, c := range doc.Containers() {
			count += edit.Substitute(c, search, replace)
		}
		if count == 0 {
			return nil
		}
		out := storage.RevisedPath(path)
		if err := doc.SaveTo(out); err != nil {
			e.logger.Error("engine.replace_save_failed", "user", user, "error", err)
			return errinfo.FileWriteFailed(errinfo.PhaseReplace, err.Error())
		}
		e.sessions.UpdateFile(user, out)
		res.Found = true
		res.Count = count
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	if res.Found {
		e.logger.Info("engine.replaced", "user", user, "count", res.Count)
	}
	return res, nil
}

// AnalyzeResult carries the analysis text, any generated fixes (already
// stored as the session's pending fixes), and the usage picture after the
// call was counted.
type AnalyzeResult struct {
	Kind         string     `json:"kind"`
	Text         string     `json:"text,omitempty"`
	Fixes        []edit.Fix `json:"fixes"`
	Model        string     `json:"model"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	CostUSD      float64    `json:"cost_usd"`
	Remaining    int        `json:"usage_remaining"`
	Approaching  bool       `json:"usage_approaching"`
}

func (e *Engine) Analyze(ctx context.Context, user, kind string) (AnalyzeResult, error) {
	switch kind {
	case config.TaskGrammar, config.TaskFullReview, config.TaskSummary, config.TaskGenerateFixes:
	default:
		return AnalyzeResult{}, errinfo.ValidationFailed(errinfo.PhaseAnalyze,
			"Unknown analysis type.", "unsupported task: "+kind)
	}
	if e.brain == nil {
		return AnalyzeResult{}, errinfo.ProviderNotConfigured(errinfo.PhaseAnalyze)
	}
	doc, err := e.openSessionDocument(user, errinfo.PhaseAnalyze)
	if err != nil {
		return AnalyzeResult{}, err
	}

	allowed, _, status := e.limiter.CanUse(user)
	if !allowed {
		next := e.limiter.NextExpiry(user)
		return AnalyzeResult{}, errinfo.UsageLimitReached(errinfo.PhaseAnalyze,
			"next expiry "+next.UTC().Format(time.RFC3339))
	}

	analysis, aerr := e.brain.Analyze(ctx, kind, doc.FullText())
	if aerr != nil {
		return AnalyzeResult{}, aerr
	}
	remaining := e.limiter.RecordUse(user)

	if len(analysis.Fixes) > 0 {
		e.sessions.SetPendingFixes(user, analysis.Fixes)
	} else {
		e.sessions.Update(user)
	}
	return AnalyzeResult{
		Kind:         kind,
		Text:         analysis.Text,
		Fixes:        analysis.Fixes,
		Model:        analysis.Model,
		InputTokens:  analysis.Usage.InputTokens,
		OutputTokens: analysis.Usage.OutputTokens,
		CostUSD:      analysis.CostUSD,
		Remaining:    remaining,
		Approaching:  status == usage.StatusApproaching,
	}, nil
}

func (e *Engine) PendingFixes(user string) ([]edit.Fix, error) {
	if !e.sessions.IsActive(user) {
		return nil, errinfo.SessionNotFound(errinfo.PhaseApply)
	}
	fixes := e.sessions.PendingFixes(user)
	if fixes == nil {
		fixes = []edit.Fix{}
	}
	return fixes, nil
}

type ApplyResult struct {
	edit.Result
	NewArtifact bool `json:"new_artifact"`
}

// ApplyFixes applies the session's pending fixes (all of them, or the given
// subset by position) on the worker pool. Pending fixes are cleared whether
// or not anything applied; the partition result reports what happened.
func (e *Engine) ApplyFixes(ctx context.Context, user string, indexes []int) (ApplyResult, error) {
	if _, errInfo := e.sessionFilePath(user, errinfo.PhaseApply); errInfo != nil {
		return ApplyResult{}, errInfo
	}
	pending := e.sessions.PendingFixes(user)
	fixes := pending
	if indexes != nil {
		fixes = make([]edit.Fix, 0, len(indexes))
		for _, i := range indexes {
			if i < 0 || i >= len(pending) {
				return ApplyResult{}, errinfo.ValidationFailed(errinfo.PhaseApply,
					"Unknown fix selected.", "fix index out of range")
			}
			fixes = append(fixes, pending[i])
		}
	}

	res := ApplyResult{Result: edit.Result{Applied: []edit.Fix{}, Skipped: []edit.Fix{}}}
	err := e.pool.Do(ctx, user, func() error {
		if len(fixes) == 0 {
			return nil
		}
		path, errInfo := e.sessionFilePath(user, errinfo.PhaseApply)
		if errInfo != nil {
			return errInfo
		}
		doc, err := docx.Open(path)
		if err != nil {
			e.logger.Error("engine.apply_open_failed", "user", user, "error", err)
			return errinfo.FileReadFailed(errinfo.PhaseApply, err.Error())
		}
		res.Result = edit.ApplyAll(doc, fixes)
		if res.AppliedCount == 0 {
			return nil
		}
		out := storage.RevisedPath(path)
		if err := doc.SaveTo(out); err != nil {
			e.logger.Error("engine.apply_save_failed", "user", user, "error", err)
			return errinfo.FileWriteFailed(errinfo.PhaseApply, err.Error())
		}
		e.sessions.UpdateFile(user, out)
		res.NewArtifact = true
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	e.sessions.ClearPendingFixes(user)
	e.logger.Info("engine.fixes_applied", "user", user,
		"applied", res.AppliedCount, "skipped", res.SkippedCount, "new_artifact", res.NewArtifact)
	return res, nil
}

// Document names the session's current artifact for download: its path on
// disk and the user-facing revised file name.
func (e *Engine) Document(user string) (path, downloadName string, err error) {
	path, errInfo := e.sessionFilePath(user, errinfo.PhaseDownload)
	if errInfo != nil {
		return "", "", errInfo
	}
	e.sessions.Update(user)
	return path, storage.CleanOutputName(e.sessions.OriginalName(user)), nil
}

type UsageStatus struct {
	Used       int       `json:"used"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	NextExpiry time.Time `json:"next_expiry"`
}

func (e *Engine) Usage(user string) UsageStatus {
	used, limit := e.limiter.Usage(user)
	return UsageStatus{
		Used:       used,
		Limit:      limit,
		Remaining:  limit - used,
		NextExpiry: e.limiter.NextExpiry(user),
	}
}

func (e *Engine) sessionFilePath(user, phase string) (string, *errinfo.ErrorInfo) {
	if !e.sessions.IsActive(user) {
		return "", errinfo.SessionNotFound(phase)
	}
	path := e.sessions.FilePath(user)
	if path == "" {
		return "", errinfo.DocumentMissing(phase)
	}
	return path, nil
}

func (e *Engine) openSessionDocument(user, phase string) (*docx.Document, error) {
	path, errInfo := e.sessionFilePath(user, phase)
	if errInfo != nil {
		return nil, errInfo
	}
	doc, err := docx.Open(path)
	if err != nil {
		e.logger.Error("engine.document_open_failed", "user", user, "phase", phase, "error", err)
		return nil, errinfo.FileReadFailed(phase, err.Error())
	}
	return doc, nil
}
