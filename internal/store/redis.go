package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/interndesk/assessment-session-service/internal/cache"
	"github.com/interndesk/assessment-session-service/internal/models"
)

// RedisRegistry keeps controllers in a local map (they hold running timers
// and cannot be serialized) and uses Redis for session liveness markers and
// completed-outcome snapshots, so an operator or a sibling instance can see
// which sessions exist and fetch results after this process recycles.
type RedisRegistry struct {
	client   *redis.Client
	live     *cache.CacheHelper
	outcomes *cache.CacheHelper

	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client:   client,
		live:     cache.NewCacheHelper(client, "session:live:", ttl),
		outcomes: cache.NewCacheHelper(client, "session:outcome:", ttl),
		entries:  make(map[string]*Entry),
	}
}

func (r *RedisRegistry) Put(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	r.entries[entry.SessionID] = entry
	r.mu.Unlock()

	if err := r.live.SetString(ctx, entry.SessionID, entry.UserID); err != nil {
		return fmt.Errorf("failed to mark session live: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Get(_ context.Context, sessionID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if err := r.live.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear liveness marker: %w", err)
	}
	return nil
}

func (r *RedisRegistry) SaveOutcome(ctx context.Context, sessionID, userID string, outcome models.Outcome) error {
	record := OutcomeRecord{UserID: userID, Outcome: outcome}
	if err := r.outcomes.Set(ctx, sessionID, record); err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	return nil
}

func (r *RedisRegistry) GetOutcome(ctx context.Context, sessionID string) (OutcomeRecord, error) {
	var record OutcomeRecord
	if err := r.outcomes.Get(ctx, sessionID, &record); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return OutcomeRecord{}, ErrOutcomeNotFound
		}
		return OutcomeRecord{}, fmt.Errorf("failed to load outcome: %w", err)
	}
	return record, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
