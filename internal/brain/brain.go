// Package brain runs document analysis through a completion provider and
// turns model responses into display text and applicable fixes.
//
// Task routing mirrors the configured model tiers: grammar runs on the fast
// model, full review, summary and fix generation on the smart one.
package brain

import (
	"context"
	"errors"
	"log/slog"

	"dochelper/internal/config"
	"dochelper/internal/edit"
	"dochelper/internal/errinfo"
	"dochelper/internal/llm"
	"dochelper/internal/logging"
)

const truncationNotice = "\n\n[Document truncated for analysis...]"

// Analysis is the outcome of one analysis request.
type Analysis struct {
	Text    string
	Fixes   []edit.Fix
	Usage   llm.Usage
	Model   string
	CostUSD float64
}

type Brain struct {
	client  llm.Client
	cfg     *config.Config
	logger  *slog.Logger
	tracker *Tracker
}

type Option func(*Brain)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Brain) {
		b.logger = logger
	}
}

func New(client llm.Client, cfg *config.Config, opts ...Option) *Brain {
	b := &Brain{
		client: client,
		cfg:    cfg,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tracker = NewTracker(cfg, b.logger)
	return b
}

// Tracker exposes the accumulated usage totals.
func (b *Brain) Tracker() *Tracker {
	return b.tracker
}

// Analyze runs one analysis task over extracted document text. The content
// is truncated to the configured limit before it is sent; review tasks get
// a visible truncation notice, fix generation does not.
func (b *Brain) Analyze(ctx context.Context, task, content string) (*Analysis, error) {
	model := b.cfg.ModelForTask(task)
	system := systemPrompt(task)

	truncated, wasTruncated := truncate(content, b.cfg.MaxContentChars)
	userMessage := "Please analyze this document:\n\n" + truncated
	label := "analyze:" + task
	if task == config.TaskGenerateFixes {
		userMessage = "Find and fix errors in this document:\n\n" + truncated
		label = task
	} else if wasTruncated {
		userMessage += truncationNotice
	}

	if b.logger.Enabled(ctx, slog.LevelDebug) {
		b.logger.Debug("brain.request",
			"task", task,
			"model", model,
			"content_chars", len(truncated),
			"truncated", wasTruncated,
			"estimated_tokens", EstimateTokens(userMessage),
		)
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.cfg.AIRequestTimeout)
	defer cancel()
	completion, err := b.client.Complete(reqCtx, llm.Request{
		Model:     model,
		System:    system,
		MaxTokens: b.cfg.AIMaxTokens,
		Messages:  []llm.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		return nil, b.mapError(task, err)
	}

	cost := b.tracker.AddUsage(model, completion.Usage, label)
	analysis := &Analysis{
		Fixes:   []edit.Fix{},
		Usage:   completion.Usage,
		Model:   model,
		CostUSD: cost,
	}

	switch task {
	case config.TaskGenerateFixes:
		fixes, err := parseGeneratedFixes(completion.Text)
		if err != nil {
			b.logger.Warn("brain.fixes_parse_failed", "task", task, "error", err)
			return analysis, nil
		}
		analysis.Fixes = fixes
		b.logger.Info("brain.fixes_generated", "count", len(fixes))
	case config.TaskFullReview, config.TaskGrammar:
		analysis.Fixes = extractFixes(completion.Text)
		analysis.Text = cleanResponse(completion.Text)
		b.logger.Info("brain.fixes_extracted", "task", task, "count", len(analysis.Fixes))
	default:
		analysis.Text = completion.Text
	}
	return analysis, nil
}

func (b *Brain) mapError(task string, err error) error {
	switch {
	case errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		b.logger.Error("brain.timeout", "task", task, "timeout", b.cfg.AIRequestTimeout)
		return errinfo.AITimeout(errinfo.PhaseAnalyze)
	case errors.Is(err, llm.ErrUnauthorized):
		return errinfo.ProviderAuthFailed(errinfo.PhaseAnalyze)
	case errors.Is(err, llm.ErrRateLimited):
		return errinfo.RateLimited(errinfo.PhaseAnalyze)
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrEgressBlocked):
		return errinfo.ProviderUnavailable(errinfo.PhaseAnalyze, err.Error())
	default:
		b.logger.Error("brain.request_failed", "task", task, "error", err)
		return errinfo.AIResponseInvalid(errinfo.PhaseAnalyze, err.Error())
	}
}

// truncate cuts s to at most max runes, reporting whether it cut anything.
func truncate(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i], true
		}
		count++
	}
	return s, false
}
