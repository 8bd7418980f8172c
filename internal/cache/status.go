// Package cache is a small Redis-backed read cache for processing statuses.
// The status endpoint is polled aggressively by clients waiting on a
// conversion, so the worker publishes every transition here and the API
// checks the cache before touching Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/StreamVault/internal/model"
)

const (
	statusKeyPrefix = "video:status:"
	statusTTL       = 10 * time.Minute
)

// ErrMiss is returned when no cached status exists for the id.
var ErrMiss = errors.New("status not cached")

// statusEntry is the cached snapshot. The HLS flag is persisted state, not
// derivable from the status: a reprocessed asset can sit failed with
// renditions still on disk.
type statusEntry struct {
	Status       model.ProcessingStatus `json:"status"`
	HLSProcessed bool                   `json:"hls_processed"`
}

// StatusCache stores the latest known processing status per video.
type StatusCache struct {
	client *redis.Client
}

// NewStatusCache constructs a StatusCache.
func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

// Get returns the cached status and HLS flag for a video. Entries that do not
// decode are reported as misses so the caller falls back to the store.
func (c *StatusCache) Get(ctx context.Context, videoID string) (model.ProcessingStatus, bool, error) {
	val, err := c.client.Get(ctx, statusKeyPrefix+videoID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, ErrMiss
		}
		return "", false, err
	}
	var entry statusEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return "", false, ErrMiss
	}
	return entry.Status, entry.HLSProcessed, nil
}

// Set records the snapshot with a TTL so stale entries age out on their own.
func (c *StatusCache) Set(ctx context.Context, videoID string, status model.ProcessingStatus, hlsProcessed bool) error {
	data, err := json.Marshal(statusEntry{Status: status, HLSProcessed: hlsProcessed})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+videoID, data, statusTTL).Err()
}

// Delete drops the cached entry, used when the asset is removed.
func (c *StatusCache) Delete(ctx context.Context, videoID string) error {
	return c.client.Del(ctx, statusKeyPrefix+videoID).Err()
}
