package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Classifier   ClassifierConfig   `yaml:"classifier" mapstructure:"classifier"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI       OpenAIConfig       `yaml:"openai" mapstructure:"openai"`
	Google       GoogleConfig       `yaml:"google" mapstructure:"google"`
	Crime        CrimeConfig        `yaml:"crime" mapstructure:"crime"`
	Alternatives AlternativesConfig `yaml:"alternatives" mapstructure:"alternatives"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Circuit      CircuitConfig      `yaml:"circuit" mapstructure:"circuit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// ClassifierConfig selects the reasoning service used for mismatch classification.
type ClassifierConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // "anthropic" or "openai"
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig configures place resolution and nearby discovery.
type GoogleConfig struct {
	Provider      string   `yaml:"provider" mapstructure:"provider"` // "places" or "maps"
	Key           string   `yaml:"key" mapstructure:"key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	IncludedTypes []string `yaml:"included_types" mapstructure:"included_types"`
	MaxResults    int      `yaml:"max_results" mapstructure:"max_results"`
	RateLimit     float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CrimeConfig configures the crime baseline source.
type CrimeConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"` // "backend", "postgres", "sqlite" or "fixture"
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Key              string  `yaml:"key" mapstructure:"key"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	DatabaseURL      string  `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath       string  `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	FixturePath      string  `yaml:"fixture_path" mapstructure:"fixture_path"`
	RadiusMeters     float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	WindowDays       int     `yaml:"window_days" mapstructure:"window_days"`
	SaturationPerKM2 float64 `yaml:"saturation_per_km2" mapstructure:"saturation_per_km2"`
}

// AlternativesConfig tunes the alternatives ranker.
type AlternativesConfig struct {
	RadiusMeters float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	Shortlist    int     `yaml:"shortlist" mapstructure:"shortlist"`
	TopN         int     `yaml:"top_n" mapstructure:"top_n"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// CacheConfig configures the optional Redis lookup cache. An empty address
// disables caching.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// CircuitConfig configures per-collaborator circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; existing environment variables win.
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("config: no .env file loaded", zap.Error(err))
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GLOWPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("classifier.provider", "anthropic")
	v.SetDefault("classifier.temperature", 0.0)
	v.SetDefault("classifier.max_tokens", 400)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("google.provider", "places")
	v.SetDefault("google.included_types", []string{"bar", "restaurant", "cafe", "night_club"})
	v.SetDefault("google.max_results", 20)
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("crime.provider", "backend")
	v.SetDefault("crime.rate_limit", 5)
	v.SetDefault("crime.sqlite_path", "glowpath.db")
	v.SetDefault("crime.radius_meters", 500)
	v.SetDefault("crime.window_days", 30)
	v.SetDefault("crime.saturation_per_km2", 120)
	v.SetDefault("alternatives.radius_meters", 800)
	v.SetDefault("alternatives.shortlist", 8)
	v.SetDefault("alternatives.top_n", 5)
	v.SetDefault("alternatives.concurrency", 4)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	// Secrets and endpoints have no default but must be known keys so
	// AutomaticEnv picks them up during Unmarshal.
	for _, key := range []string{
		"anthropic.key", "anthropic.base_url",
		"openai.key", "openai.base_url",
		"google.key", "google.base_url",
		"crime.base_url", "crime.key", "crime.database_url", "crime.fixture_path",
		"cache.redis_addr", "cache.redis_password",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("cache.redis_db", 0)
}

// Validate checks that the keys required by the given command mode are
// present. Modes: "assess", "alternatives", "serve", "import".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "assess", "alternatives", "serve":
		errs = append(errs, c.validateEngine()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		switch c.Crime.Provider {
		case "postgres":
			if c.Crime.DatabaseURL == "" {
				errs = append(errs, "crime.database_url is required")
			}
		case "sqlite":
			if c.Crime.SQLitePath == "" {
				errs = append(errs, "crime.sqlite_path is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("crime.provider must be postgres or sqlite to import, got %q", c.Crime.Provider))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateEngine() []string {
	var errs []string

	switch c.Classifier.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			errs = append(errs, "openai.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("classifier.provider must be anthropic or openai, got %q", c.Classifier.Provider))
	}
	if c.Classifier.MaxTokens <= 0 {
		errs = append(errs, "classifier.max_tokens must be > 0")
	}

	switch c.Google.Provider {
	case "places", "maps":
		if c.Google.Key == "" {
			errs = append(errs, "google.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("google.provider must be places or maps, got %q", c.Google.Provider))
	}

	switch c.Crime.Provider {
	case "backend":
		if c.Crime.BaseURL == "" {
			errs = append(errs, "crime.base_url is required")
		}
	case "postgres":
		if c.Crime.DatabaseURL == "" {
			errs = append(errs, "crime.database_url is required")
		}
	case "sqlite":
		if c.Crime.SQLitePath == "" {
			errs = append(errs, "crime.sqlite_path is required")
		}
	case "fixture":
		if c.Crime.FixturePath == "" {
			errs = append(errs, "crime.fixture_path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("crime.provider must be backend, postgres, sqlite or fixture, got %q", c.Crime.Provider))
	}
	if c.Crime.RadiusMeters <= 0 {
		errs = append(errs, "crime.radius_meters must be > 0")
	}
	if c.Crime.WindowDays <= 0 {
		errs = append(errs, "crime.window_days must be > 0")
	}

	if c.Alternatives.Shortlist < 1 || c.Alternatives.Shortlist > 20 {
		errs = append(errs, "alternatives.shortlist must be between 1 and 20")
	}
	if c.Alternatives.TopN <= 0 {
		errs = append(errs, "alternatives.top_n must be > 0")
	}
	if c.Alternatives.Concurrency <= 0 {
		errs = append(errs, "alternatives.concurrency must be > 0")
	}

	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
