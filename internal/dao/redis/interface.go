// Package redis defines the cache service interfaces.
// Services depend on these interfaces, never on a concrete client, which keeps
// the cache swappable and the services testable with in-memory fakes.
package redis

import (
	"context"
	"time"
)

// CacheService is the synchronous cache surface.
type CacheService interface {
	// Set stores a value with a ttl.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get returns the value, or "" and nil when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// GetOrError returns the value, or CodeNotFound when the key is missing.
	GetOrError(ctx context.Context, key string) (string, error)

	// Delete removes a key if present.
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes every key matching the pattern.
	DeleteByPattern(ctx context.Context, pattern string) error

	// AddToSet adds members to a set and refreshes its ttl.
	AddToSet(ctx context.Context, key string, ttl time.Duration, members ...interface{}) error
	// GetSetMembers returns all members of a set.
	GetSetMembers(ctx context.Context, key string) ([]string, error)
	// RemoveFromSet removes members from a set.
	RemoveFromSet(ctx context.Context, key string, members ...interface{}) error
}

// AsyncCacheService adds non-blocking task submission on top of CacheService.
// Cache maintenance never sits on a request or chat hot path.
type AsyncCacheService interface {
	CacheService
	// SubmitTask queues a cache maintenance closure; when the queue is full it
	// degrades to synchronous execution rather than dropping the work.
	SubmitTask(action func())
}
