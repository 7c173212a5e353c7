package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/helpcove/kbsync/internal/contentlock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCorruptLock means the stored lock cannot be decoded. Syncing must not
	// proceed until an operator inspects or clears the key.
	ErrCorruptLock = errors.New("corrupt content lock")

	lockKey = "lock:all"
)

// LockRepository persists the content lock as a single JSON object under
// lock:all. The whole object is replaced on every commit.
type LockRepository struct {
	client *Client
	log    *zap.Logger
}

// NewLockRepository initializes a new LockRepository instance.
func NewLockRepository(client *Client, log *zap.Logger) *LockRepository {
	return &LockRepository{
		client: client,
		log:    log.Named("lock_repo"),
	}
}

// Get returns the stored lock. A missing key yields an empty lock. Keys
// written by the legacy RedisJSON deployment are read through JSON.GET until
// the next Put rewrites them as a plain string.
func (r *LockRepository) Get(ctx context.Context) (contentlock.Lock, error) {
	raw, err := r.client.Get(ctx, lockKey).Bytes()
	switch {
	case err == nil:
		return decodeLock(raw)
	case errors.Is(err, redis.Nil):
		return contentlock.Lock{}, nil
	case isWrongType(err):
		return r.getLegacy(ctx)
	default:
		return nil, fmt.Errorf("get %s: %w", lockKey, err)
	}
}

// Put overwrites the whole lock in one SET. SET replaces the key regardless of
// its previous type, which also migrates legacy RedisJSON values.
func (r *LockRepository) Put(ctx context.Context, lock contentlock.Lock) error {
	payload, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := r.client.Set(ctx, lockKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", lockKey, err)
	}

	r.log.Debug("lock committed", zap.Int("entries", len(lock)))
	return nil
}

// Clear removes the lock entirely. Used by the reset flow.
func (r *LockRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, lockKey).Err(); err != nil {
		return fmt.Errorf("del %s: %w", lockKey, err)
	}
	return nil
}

// getLegacy reads a lock written by the RedisJSON layout of earlier releases.
// JSON.GET with the root path wraps the object in a one-element array.
func (r *LockRepository) getLegacy(ctx context.Context) (contentlock.Lock, error) {
	r.log.Warn("lock stored in legacy RedisJSON layout, reading through JSON.GET")

	raw, err := r.client.JSONGet(ctx, lockKey, "$").Result()
	if err != nil {
		return nil, fmt.Errorf("json.get %s: %w", lockKey, err)
	}
	return decodeLegacyLock([]byte(raw))
}

// decodeLegacyLock unwraps the one-element array JSON.GET returns for the root
// path and parses the object inside.
func decodeLegacyLock(raw []byte) (contentlock.Lock, error) {
	var wrapped []map[string]string
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: legacy payload: %v", ErrCorruptLock, err)
	}
	if len(wrapped) == 0 {
		return contentlock.Lock{}, nil
	}
	return parseLock(wrapped[0])
}

// decodeLock deserializes a JSON object payload into a Lock.
func decodeLock(raw []byte) (contentlock.Lock, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLock, err)
	}
	return parseLock(m)
}

// parseLock converts string-keyed hash entries into article-keyed ones.
func parseLock(m map[string]string) (contentlock.Lock, error) {
	lock := make(contentlock.Lock, len(m))
	for k, v := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not an article id", ErrCorruptLock, k)
		}
		lock[id] = v
	}
	return lock, nil
}

// isWrongType detects the server-side type mismatch reply. go-redis exposes it
// only as a string.
func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}
