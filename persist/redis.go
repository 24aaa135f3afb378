// ABOUTME: Redis repository: documents as JSON strings plus a ZSET index scored by save time.
// ABOUTME: Save and delete keep the key and the index in step through a pipeline.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the repository writes.
const DefaultRedisPrefix = "flowcanvas:document:"

// RedisRepository stores documents in Redis.
type RedisRepository struct {
	client *backend.Client
	prefix string
}

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) { r.prefix = prefix }
}

// NewRedis connects to addr.
func NewRedis(addr, password string, db int, opts ...RedisOption) *RedisRepository {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepository) key(id string) string { return r.prefix + id }

func (r *RedisRepository) indexKey() string { return r.prefix + "index" }

// Ping checks connectivity.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Save stores doc and indexes it by save time.
func (r *RedisRepository) Save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(doc.ID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{
		Score:  savedAtScore(doc.SavedAt),
		Member: doc.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save to redis: %w", err)
	}
	return nil
}

// Load reads one document.
func (r *RedisRepository) Load(ctx context.Context, id string) (Document, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, backend.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get from redis: %w", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every indexed document, newest first. Index entries whose
// key has disappeared are pruned.
func (r *RedisRepository) List(ctx context.Context) ([]Summary, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		doc, err := r.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			r.client.ZRem(ctx, r.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Delete removes a document and its index entry.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.key(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete from redis: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// savedAtScore orders the index by save time in milliseconds.
func savedAtScore(t time.Time) float64 { return float64(t.UnixMilli()) }
