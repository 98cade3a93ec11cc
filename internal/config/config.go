package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"dochelper/internal/appdirs"
	"dochelper/internal/envutil"
)

// Analysis task identifiers. Each maps to a model tier: grammar runs on the
// fast model, everything else on the smart one.
const (
	TaskGrammar       = "grammar"
	TaskFullReview    = "full_review"
	TaskSummary       = "summary"
	TaskGenerateFixes = "generate_fixes"
)

const (
	defaultModelFast  = "claude-3-haiku-20240307"
	defaultModelSmart = "claude-sonnet-4-20250514"
)

// ModelPricing is USD per 1M tokens.
type ModelPricing struct {
	Input  float64
	Output float64
}

type Config struct {
	Addr        string
	DataDir     string
	DownloadDir string
	Debug       bool
	NotifyURL   string

	AnthropicAPIKey string
	ModelFast       string
	ModelSmart      string
	Pricing         map[string]ModelPricing
	FakeAI          bool

	MaxFileSizeMB    int
	MaxFileSizeBytes int64
	MaxContentChars  int
	AIMaxTokens      int
	AIRequestTimeout time.Duration

	SessionWarning time.Duration
	SessionExpire  time.Duration
	IdleTimeout    time.Duration
	SweepInterval  time.Duration

	UsageLimit  int
	UsageWarnAt int
	UsageWindow time.Duration

	ThrottleInterval       time.Duration
	ThrottleUploadInterval time.Duration

	WorkerConcurrency int
}

// Load reads an optional .env file, then builds the config from the
// environment with defaults for everything but credentials.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dataDir, err := appdirs.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := &Config{
		Addr:        envutil.String("DOCHELPER_ADDR", ":8090"),
		DataDir:     dataDir,
		DownloadDir: envutil.String("DOCHELPER_DOWNLOAD_DIR", appdirs.DownloadsDir(dataDir)),
		Debug:       envutil.Bool("DOCHELPER_DEBUG"),
		NotifyURL:   envutil.String("DOCHELPER_NOTIFY_URL", ""),

		AnthropicAPIKey: envutil.String("ANTHROPIC_API_KEY", ""),
		ModelFast:       envutil.String("DOCHELPER_MODEL_FAST", defaultModelFast),
		ModelSmart:      envutil.String("DOCHELPER_MODEL_SMART", defaultModelSmart),
		FakeAI:          envutil.Bool("DOCHELPER_FAKE_AI"),

		MaxFileSizeMB:    envutil.Int("DOCHELPER_MAX_FILE_SIZE_MB", 10),
		MaxContentChars:  envutil.Int("DOCHELPER_MAX_CONTENT_CHARS", 15000),
		AIMaxTokens:      envutil.Int("DOCHELPER_AI_MAX_TOKENS", 2500),
		AIRequestTimeout: envutil.Duration("DOCHELPER_AI_REQUEST_TIMEOUT", 120*time.Second),

		SessionWarning: envutil.Duration("DOCHELPER_SESSION_WARNING", 300*time.Second),
		SessionExpire:  envutil.Duration("DOCHELPER_SESSION_EXPIRE", 420*time.Second),
		IdleTimeout:    envutil.Duration("DOCHELPER_IDLE_TIMEOUT", 600*time.Second),
		SweepInterval:  envutil.Duration("DOCHELPER_SWEEP_INTERVAL", 30*time.Second),

		UsageLimit:  envutil.Int("DOCHELPER_USAGE_LIMIT", 10),
		UsageWarnAt: envutil.Int("DOCHELPER_USAGE_WARN_AT", 8),
		UsageWindow: envutil.Duration("DOCHELPER_USAGE_WINDOW", 7*24*time.Hour),

		ThrottleInterval:       envutil.Duration("DOCHELPER_THROTTLE_INTERVAL", 500*time.Millisecond),
		ThrottleUploadInterval: envutil.Duration("DOCHELPER_THROTTLE_UPLOAD_INTERVAL", 5*time.Second),

		WorkerConcurrency: envutil.Int("DOCHELPER_WORKER_CONCURRENCY", 4),
	}
	cfg.MaxFileSizeBytes = int64(cfg.MaxFileSizeMB) * 1024 * 1024
	cfg.Pricing = map[string]ModelPricing{
		cfg.ModelFast: {
			Input:  envutil.Float("DOCHELPER_PRICE_FAST_INPUT", 0.25),
			Output: envutil.Float("DOCHELPER_PRICE_FAST_OUTPUT", 1.25),
		},
		cfg.ModelSmart: {
			Input:  envutil.Float("DOCHELPER_PRICE_SMART_INPUT", 3.0),
			Output: envutil.Float("DOCHELPER_PRICE_SMART_OUTPUT", 15.0),
		},
	}
	return cfg, nil
}

// ModelForTask returns the model id to use for an analysis task.
func (c *Config) ModelForTask(task string) string {
	if task == TaskGrammar {
		return c.ModelFast
	}
	return c.ModelSmart
}

// PriceFor returns the pricing entry for a model, zero when unknown.
func (c *Config) PriceFor(model string) ModelPricing {
	return c.Pricing[model]
}
