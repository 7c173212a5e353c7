package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// artifactIndexKey is the hash mapping article IDs to artifact (file) IDs in
// the vector store. The key name is inherited from earlier releases.
var artifactIndexKey = "article_openai_id"

// ArtifactRepository persists the article-to-artifact index as a Redis hash.
type ArtifactRepository struct {
	client *Client
	log    *zap.Logger
}

// NewArtifactRepository initializes a new ArtifactRepository instance.
func NewArtifactRepository(client *Client, log *zap.Logger) *ArtifactRepository {
	return &ArtifactRepository{
		client: client,
		log:    log.Named("artifact_repo"),
	}
}

// GetAll returns the whole index. Fields that do not parse as article IDs are
// skipped with a warning so one bad write cannot wedge every future sync.
func (r *ArtifactRepository) GetAll(ctx context.Context) (map[int64]string, error) {
	fields, err := r.client.HGetAll(ctx, artifactIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", artifactIndexKey, err)
	}

	out := make(map[int64]string, len(fields))
	for k, v := range fields {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			r.log.Warn("skipping non-numeric index field", zap.String("field", k))
			continue
		}
		out[id] = v
	}
	return out, nil
}

// Get returns the artifact ID for one article. The bool reports presence.
func (r *ArtifactRepository) Get(ctx context.Context, id int64) (string, bool, error) {
	v, err := r.client.HGet(ctx, artifactIndexKey, strconv.FormatInt(id, 10)).Result()
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, redis.Nil):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("hget %s: %w", artifactIndexKey, err)
	}
}

// SetMany writes the given entries in one HSET. Existing fields outside the
// delta are untouched. Empty input is a no-op.
func (r *ArtifactRepository) SetMany(ctx context.Context, entries map[int64]string) error {
	if len(entries) == 0 {
		return nil
	}

	fields := make(map[string]string, len(entries))
	for id, artifactID := range entries {
		fields[strconv.FormatInt(id, 10)] = artifactID
	}
	if err := r.client.HSet(ctx, artifactIndexKey, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", artifactIndexKey, err)
	}

	r.log.Debug("index entries written", zap.Int("count", len(entries)))
	return nil
}

// RemoveMany deletes the given entries in one HDEL. Empty input is a no-op.
func (r *ArtifactRepository) RemoveMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := r.client.HDel(ctx, artifactIndexKey, fields...).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", artifactIndexKey, err)
	}
	return nil
}

// Size returns the number of index entries.
func (r *ArtifactRepository) Size(ctx context.Context) (int64, error) {
	n, err := r.client.HLen(ctx, artifactIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("hlen %s: %w", artifactIndexKey, err)
	}
	return n, nil
}

// Clear removes the whole index. Used by the reset flow.
func (r *ArtifactRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, artifactIndexKey).Err(); err != nil {
		return fmt.Errorf("del %s: %w", artifactIndexKey, err)
	}
	return nil
}
