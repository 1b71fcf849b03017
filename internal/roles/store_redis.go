package roles

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "safemint/pkg/domain"
)

var (
	hasRoleDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safemint_has_role_duration_ms",
		Help:    "Latency of role membership checks in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

const (
	// Redis key prefix for role member sets
	roleKeyPrefix = "roles:"
)

// RedisStore is a Redis-backed role store. This is the recommended
// implementation for distributed deployments where multiple instances need to
// share role grants.
type RedisStore struct {
	client *redis.Client
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// NewRedisStore constructs a Redis-backed role store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	store := &RedisStore{
		client: client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// HasRole checks set membership for the role's account set.
func (s *RedisStore) HasRole(ctx context.Context, role Role, account id.Account) (bool, error) {
	start := time.Now()
	defer func() {
		hasRoleDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	return s.client.SIsMember(ctx, roleKeyPrefix+string(role), account.String()).Result()
}

// GrantRole adds an account to the role's member set.
func (s *RedisStore) GrantRole(ctx context.Context, role Role, account id.Account) error {
	return s.client.SAdd(ctx, roleKeyPrefix+string(role), account.String()).Err()
}

// RevokeRole removes an account from the role's member set.
func (s *RedisStore) RevokeRole(ctx context.Context, role Role, account id.Account) error {
	return s.client.SRem(ctx, roleKeyPrefix+string(role), account.String()).Err()
}

// Close is a no-op for RedisStore since the client lifecycle is managed externally.
func (s *RedisStore) Close() {
	// Client lifecycle managed externally
}
