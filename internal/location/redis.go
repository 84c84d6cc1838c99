package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/Forken21/botsat/internal/transform"
)

var redisDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "botsat_location_redis_duration_ms",
	Help:    "Latency of location store Redis operations in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
}, []string{"op"})

// Redis key prefix for user locations
const keyPrefix = "botsat:location:"

// record is the stored JSON form of an observer.
type record struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"` // metres
}

// RedisStore is a Store backed by Redis, shared by every instance.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires locations ttl after they were last set. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore constructs a Redis-backed location store. The client's
// lifecycle is managed by the caller.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func observe(op string, start time.Time) {
	redisDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (s *RedisStore) Get(ctx context.Context, userID string) (transform.Observer, error) {
	if err := ValidateUserID(userID); err != nil {
		return transform.Observer{}, err
	}
	defer observe("get", time.Now())

	raw, err := s.client.Get(ctx, keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return transform.Observer{}, ErrNotFound
	}
	if err != nil {
		return transform.Observer{}, fmt.Errorf("reading location: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return transform.Observer{}, fmt.Errorf("decoding location: %w", err)
	}
	obs, err := transform.NewObserver(rec.Lat, rec.Lon, rec.Alt)
	if err != nil {
		return transform.Observer{}, fmt.Errorf("stored location: %w", err)
	}
	return obs, nil
}

// Set stores the location with SET and the configured TTL.
func (s *RedisStore) Set(ctx context.Context, userID string, obs transform.Observer) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	defer observe("set", time.Now())

	raw, err := json.Marshal(record{Lat: obs.LatDeg, Lon: obs.LonDeg, Alt: obs.AltM})
	if err != nil {
		return fmt.Errorf("encoding location: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+userID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing location: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	defer observe("delete", time.Now())

	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	return nil
}

// Ping checks the connection, for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
