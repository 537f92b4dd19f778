package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/assess"
	"github.com/sells-group/glowpath/internal/cache"
	"github.com/sells-group/glowpath/internal/classify"
	"github.com/sells-group/glowpath/internal/config"
	"github.com/sells-group/glowpath/internal/crime"
	"github.com/sells-group/glowpath/internal/db"
	"github.com/sells-group/glowpath/internal/metrics"
	"github.com/sells-group/glowpath/internal/places"
	"github.com/sells-group/glowpath/internal/resilience"
	anthropicpkg "github.com/sells-group/glowpath/pkg/anthropic"
	"github.com/sells-group/glowpath/pkg/crimeapi"
	"github.com/sells-group/glowpath/pkg/google"
)

// placesProvider resolves destinations and discovers venues around them.
type placesProvider interface {
	assess.PlaceResolver
	assess.NearbyDiscoverer
}

// engineEnv holds the assembled service and everything that must be released
// when the command exits.
type engineEnv struct {
	Service *assess.Service
	Metrics *metrics.Metrics

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (e *engineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initEngine validates cfg for mode and wires providers, breakers, metrics
// and the optional cache into a Service. Callers should defer env.Close().
func initEngine(ctx context.Context, cfg *config.Config, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &engineEnv{Metrics: metrics.New(nil)}

	settings := resilience.NewSettings(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	settings.OnTransition = observeCircuit(env.Metrics)
	breakers := resilience.NewSet(settings)

	provider, err := initPlaces(cfg)
	if err != nil {
		return nil, err
	}

	crimeSource, closeCrime, err := initCrime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, closeCrime)

	classifier, err := initClassifier(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	var resolver assess.PlaceResolver = provider
	if cfg.Cache.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			zap.L().Warn("redis unavailable, lookup cache disabled", zap.Error(err))
		} else {
			ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
			resolver = cache.NewResolver(provider, rdb, ttl)
			crimeSource = cache.NewCrime(crimeSource, rdb, ttl)
			env.closers = append(env.closers, func() { _ = rdb.Close() })
			zap.L().Info("lookup cache enabled", zap.String("addr", cfg.Cache.RedisAddr), zap.Duration("ttl", ttl))
		}
	}

	env.Service = assess.New(cfg, resolver, provider, crimeSource, classifier, breakers, env.Metrics)
	return env, nil
}

// observeCircuit reports every breaker that is not closed, half-open
// included, on the circuit gauge.
func observeCircuit(m *metrics.Metrics) func(c resilience.Collaborator, from, to resilience.State) {
	return func(c resilience.Collaborator, from, to resilience.State) {
		m.SetCircuit(string(c), to != resilience.StateClosed)
		zap.L().Warn("circuit state changed",
			zap.String("collaborator", string(c)),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}

func initPlaces(cfg *config.Config) (placesProvider, error) {
	opts := places.Options{
		IncludedTypes: cfg.Google.IncludedTypes,
		MaxResults:    cfg.Google.MaxResults,
	}

	switch cfg.Google.Provider {
	case "maps":
		client, err := places.NewMapsClient(cfg.Google.Key, cfg.Google.BaseURL, int(cfg.Google.RateLimit))
		if err != nil {
			return nil, err
		}
		zap.L().Info("places provider: maps web service")
		return places.NewMaps(client, opts), nil
	default:
		client := google.NewClient(cfg.Google.Key,
			google.WithBaseURL(cfg.Google.BaseURL),
			google.WithRateLimit(cfg.Google.RateLimit),
		)
		zap.L().Info("places provider: places api v1")
		return places.NewGoogle(client, opts), nil
	}
}

// initCrime builds the configured crime source. The returned func releases
// any connection it opened and is never nil.
func initCrime(ctx context.Context, cfg *config.Config) (assess.CrimeSource, func(), error) {
	noop := func() {}

	switch cfg.Crime.Provider {
	case "postgres":
		store, pool, err := openPostgresStore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return store, pool.Close, nil
	case "sqlite":
		store, err := openSQLiteStore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case "fixture":
		f, err := crime.LoadFixture(cfg.Crime.FixturePath)
		if err != nil {
			return nil, noop, err
		}
		zap.L().Info("crime source: fixture", zap.String("path", cfg.Crime.FixturePath))
		return f, noop, nil
	default:
		client := crimeapi.NewClient(cfg.Crime.BaseURL,
			crimeapi.WithAPIKey(cfg.Crime.Key),
			crimeapi.WithRateLimit(cfg.Crime.RateLimit),
		)
		zap.L().Info("crime source: backend proxy", zap.String("base_url", cfg.Crime.BaseURL))
		return crime.NewBackend(client), noop, nil
	}
}

type closer interface{ Close() }

func openPostgresStore(ctx context.Context, cfg *config.Config) (*crime.PostgresStore, closer, error) {
	pool, err := db.Connect(ctx, cfg.Crime.DatabaseURL, 0)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect incident store")
	}
	store := crime.NewPostgresStore(pool, cfg.Crime.SaturationPerKM2)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, eris.Wrap(err, "migrate incident store")
	}
	zap.L().Info("crime source: postgres incident store")
	return store, pool, nil
}

func openSQLiteStore(ctx context.Context, cfg *config.Config) (*crime.SQLiteStore, error) {
	store, err := crime.NewSQLiteStore(cfg.Crime.SQLitePath, cfg.Crime.SaturationPerKM2)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "migrate incident store")
	}
	zap.L().Info("crime source: sqlite incident store", zap.String("path", cfg.Crime.SQLitePath))
	return store, nil
}

func initClassifier(cfg *config.Config) (assess.MismatchClassifier, error) {
	switch cfg.Classifier.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		return classify.NewAnthropic(client, classify.Options{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Classifier.MaxTokens,
			Temperature: cfg.Classifier.Temperature,
		}), nil
	case "openai":
		client := classify.NewOpenAIClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL)
		return classify.NewOpenAI(client, classify.Options{
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.Classifier.MaxTokens,
			Temperature: cfg.Classifier.Temperature,
		}), nil
	default:
		return nil, eris.Errorf("unknown classifier provider %q", cfg.Classifier.Provider)
	}
}
