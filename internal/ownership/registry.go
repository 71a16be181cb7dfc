package ownership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long an ownership entry lives. Entries are a
// performance layer over the job's own payload, so eviction is harmless.
const DefaultTTL = 24 * time.Hour

// Registry maps job handles to owning user ids in a TTL-bounded cache.
// A present entry is authoritative; a missing one falls back to the owner id
// embedded in the job payload, after which the caller backfills the cache.
type Registry struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewRegistry constructs a registry over the given cache.
func NewRegistry(cache Cache, ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{cache: cache, ttl: ttl, logger: logger.Named("ownership")}
}

func ownerKey(jobID string) string {
	return fmt.Sprintf("recognition:owner:%s", jobID)
}

// Record writes the job -> owner mapping.
func (r *Registry) Record(ctx context.Context, jobID, userID string) error {
	return r.cache.Set(ctx, ownerKey(jobID), userID, r.ttl)
}

// Owner returns the cached owner of the job, or "" on a cache miss.
// Infrastructure errors are logged and reported as a miss so that the
// payload-fallback path stays usable during cache outages.
func (r *Registry) Owner(ctx context.Context, jobID string) string {
	value, err := r.cache.Get(ctx, ownerKey(jobID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("ownership cache read failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return ""
	}
	return value
}
