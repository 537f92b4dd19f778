// Package cache memoizes place resolution and crime baselines in Redis.
// Cache errors are logged and never fail a lookup.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/glowpath/internal/model"
)

const keyPrefix = "glowpath:"

const connectionTimeout = 5 * time.Second

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect creates a Redis client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, eris.New("cache: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: redis ping")
	}
	return client, nil
}

// PlaceResolver resolves a free-text destination.
type PlaceResolver interface {
	ResolvePlace(ctx context.Context, query string) (*model.Place, error)
}

// CrimeSource returns a crime baseline for a circle.
type CrimeSource interface {
	CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error)
}

// Resolver caches successful resolutions. Misses and errors are not cached.
type Resolver struct {
	next PlaceResolver
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewResolver wraps next.
func NewResolver(next PlaceResolver, rdb redis.Cmdable, ttl time.Duration) *Resolver {
	return &Resolver{next: next, rdb: rdb, ttl: ttl}
}

// ResolvePlace returns the cached place for query or asks next.
func (r *Resolver) ResolvePlace(ctx context.Context, query string) (*model.Place, error) {
	key := PlaceKey(query)

	var cached model.Place
	if ok := get(ctx, r.rdb, key, &cached); ok {
		return &cached, nil
	}

	p, err := r.next.ResolvePlace(ctx, query)
	if err != nil || p == nil {
		return p, err
	}
	set(ctx, r.rdb, key, p, r.ttl)
	return p, nil
}

// Crime caches crime baselines by rounded location, radius and window.
type Crime struct {
	next CrimeSource
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCrime wraps next.
func NewCrime(next CrimeSource, rdb redis.Cmdable, ttl time.Duration) *Crime {
	return &Crime{next: next, rdb: rdb, ttl: ttl}
}

// CrimeBaseline returns the cached baseline or asks next.
func (c *Crime) CrimeBaseline(ctx context.Context, loc model.LatLng, radiusMeters float64, windowDays int) (float64, error) {
	key := CrimeKey(loc, radiusMeters, windowDays)

	var cached float64
	if ok := get(ctx, c.rdb, key, &cached); ok {
		return cached, nil
	}

	csi, err := c.next.CrimeBaseline(ctx, loc, radiusMeters, windowDays)
	if err != nil {
		return 0, err
	}
	set(ctx, c.rdb, key, csi, c.ttl)
	return csi, nil
}

// PlaceKey derives the cache key for a destination query. Queries that differ
// only in case, Unicode form or whitespace share a key.
func PlaceKey(query string) string {
	normalized := cases.Fold().String(norm.NFKC.String(strings.Join(strings.Fields(query), " ")))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%splace:%x", keyPrefix, h)
}

// CrimeKey derives the cache key for a baseline lookup. Coordinates are
// rounded to five decimals (about a metre).
func CrimeKey(loc model.LatLng, radiusMeters float64, windowDays int) string {
	return keyPrefix + "csi:" +
		strconv.FormatFloat(loc.Latitude, 'f', 5, 64) + "," +
		strconv.FormatFloat(loc.Longitude, 'f', 5, 64) + ":" +
		strconv.FormatFloat(radiusMeters, 'f', 0, 64) + ":" +
		strconv.Itoa(windowDays)
}

func get(ctx context.Context, rdb redis.Cmdable, key string, dst any) bool {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		zap.L().Warn("cache: corrupt entry", zap.String("key", key), zap.Error(err))
		return false
	}
	zap.L().Debug("cache: hit", zap.String("key", key))
	return true
}

func set(ctx context.Context, rdb redis.Cmdable, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache: marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		zap.L().Warn("cache: set failed", zap.String("key", key), zap.Error(err))
	}
}
