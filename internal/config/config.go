package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"nambo/internal/completion"
)

var (
	ErrMissingAPIKey = errors.New("api key for provider is missing")
	ErrNoSurface     = errors.New("neither TOKEN nor HTTP_ADDR is set")
)

type Config struct {
	// An empty TOKEN disables the Telegram surface and an empty HTTP_ADDR
	// disables the web one.
	Token        string  `env:"TOKEN"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	HTTPAddr     string  `env:"HTTP_ADDR"`

	Provider        string `env:"PROVIDER"          envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	Model           string `env:"MODEL"`

	Temperature       float64       `env:"TEMPERATURE"        envDefault:"0.7"`
	MaxOutputTokens   int64         `env:"MAX_OUTPUT_TOKENS"  envDefault:"1024"`
	TokenBudget       int           `env:"TOKEN_BUDGET"       envDefault:"1000"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	SummaryRetries    uint64        `env:"SUMMARY_RETRIES"    envDefault:"2"`

	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL"   envDefault:"24h"`
	SessionSweepSpec string        `env:"SESSION_SWEEP_SPEC" envDefault:"@every 10m"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = completion.DefaultModel(cfg.Provider)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.Provider {
	case completion.ProviderOpenAI, completion.ProviderAnthropic:
		if strings.TrimSpace(c.APIKey()) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingAPIKey, c.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", completion.ErrUnknownProvider, c.Provider))
	}

	if c.Token == "" && c.HTTPAddr == "" {
		errs = append(errs, ErrNoSurface)
	}
	if c.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_BUDGET must be positive, got %d", c.TokenBudget))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("TEMPERATURE must be within [0, 2], got %v", c.Temperature))
	}

	return errors.Join(errs...)
}

// APIKey returns the key of the configured provider.
func (c Config) APIKey() string {
	if c.Provider == completion.ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func (c Config) CompletionOptions() completion.Options {
	return completion.Options{
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
}
