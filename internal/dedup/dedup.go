// Package dedup filters duplicate provider webhook deliveries.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper reports whether a provider event was already processed and
// records processed events with a TTL.
type Deduper interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

func dedupKey(eventID string) string {
	return fmt.Sprintf("dedup:msg:%s", eventID)
}

// RedisDeduper implements Deduper on a shared Redis instance, so
// duplicates are caught across restarts and replicas.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisDeduper {
	return &RedisDeduper{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "dedup"),
	}
}

// IsDuplicate checks whether the event key exists. Redis errors fail
// open: processing a duplicate is recoverable, dropping a real message
// is not.
func (d *RedisDeduper) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	_, err := d.client.Get(ctx, dedupKey(eventID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		d.logger.WarnContext(ctx, "Dedup check failed, treating as new event", "event_id", eventID, "error", err)
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	d.logger.WarnContext(ctx, "Duplicate webhook event detected", "event_id", eventID)
	return true, nil
}

// MarkProcessed records the event with the configured TTL.
func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, dedupKey(eventID), time.Now().Unix(), d.ttl).Err(); err != nil {
		d.logger.WarnContext(ctx, "Failed to mark event as processed", "event_id", eventID, "error", err)
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MemoryDeduper is the single-instance fallback used when no Redis is
// configured. Entries expire lazily on lookup.
type MemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	maxSize int
}

// NewMemoryDeduper creates an in-process deduper.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
		maxSize: 100000,
	}
}

// IsDuplicate reports whether the event was seen within the TTL.
func (d *MemoryDeduper) IsDuplicate(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expiry, ok := d.seen[eventID]
	if !ok {
		return false, nil
	}
	if d.now().After(expiry) {
		delete(d.seen, eventID)
		return false, nil
	}
	return true, nil
}

// MarkProcessed records the event. When the map grows past its bound,
// expired entries are swept before inserting.
func (d *MemoryDeduper) MarkProcessed(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.seen) >= d.maxSize {
		now := d.now()
		for id, expiry := range d.seen {
			if now.After(expiry) {
				delete(d.seen, id)
			}
		}
	}
	d.seen[eventID] = d.now().Add(d.ttl)
	return nil
}
