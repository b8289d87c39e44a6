package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

const defaultPrefix = "harbor:pdf:artifact:"

var errNilClient = errors.New("redis client is nil")

// RedisStore keeps each artifact as two keys sharing one TTL:
//
//	{prefix}{id}:meta  JSON encoded types.Artifact
//	{prefix}{id}:data  document bytes
type RedisStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

var _ ports.ArtifactStore = (*RedisStore)(nil)

type RedisStoreOption func(*RedisStore)

func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL sets the expiry used when an artifact carries no ExpiresAt.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.defaultTTL = ttl }
}

// NewRedisStore does not take ownership of client.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultPrefix, defaultTTL: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Put(ctx context.Context, a types.Artifact, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.client == nil {
		return errNilClient
	}
	if a.ID == "" {
		return errors.New("artifact id is empty")
	}
	ttl := s.ttlFor(a)
	meta, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", a.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.metaKey(a.ID), meta, ttl)
	pipe.Set(ctx, s.dataKey(a.ID), data, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store artifact %s: %w", a.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (types.Artifact, []byte, error) {
	if err := ctx.Err(); err != nil {
		return types.Artifact{}, nil, err
	}
	if s.client == nil {
		return types.Artifact{}, nil, errNilClient
	}

	pipe := s.client.Pipeline()
	metaCmd := pipe.Get(ctx, s.metaKey(id))
	dataCmd := pipe.Get(ctx, s.dataKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return types.Artifact{}, nil, fmt.Errorf("load artifact %s: %w", id, err)
	}
	meta, err := metaCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Artifact{}, nil, types.ErrArtifactNotFound
	}
	if err != nil {
		return types.Artifact{}, nil, fmt.Errorf("load artifact %s: %w", id, err)
	}
	data, err := dataCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		// The keys expire together; a lone meta key is about to go too.
		return types.Artifact{}, nil, types.ErrArtifactNotFound
	}
	if err != nil {
		return types.Artifact{}, nil, fmt.Errorf("load artifact %s: %w", id, err)
	}

	var a types.Artifact
	if err := json.Unmarshal(meta, &a); err != nil {
		return types.Artifact{}, nil, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	return a, data, nil
}

func (s *RedisStore) ttlFor(a types.Artifact) time.Duration {
	if !a.ExpiresAt.IsZero() && a.ExpiresAt.After(a.CreatedAt) {
		return a.ExpiresAt.Sub(a.CreatedAt)
	}
	return s.defaultTTL
}

func (s *RedisStore) metaKey(id string) string { return s.prefix + id + ":meta" }

func (s *RedisStore) dataKey(id string) string { return s.prefix + id + ":data" }
