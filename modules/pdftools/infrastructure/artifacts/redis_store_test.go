package artifacts

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

func TestRedisStore_NilClient(t *testing.T) {
	t.Parallel()

	s := NewRedisStore(nil)
	ctx := context.Background()
	if err := s.Put(ctx, types.Artifact{ID: "a"}, nil); !errors.Is(err, errNilClient) {
		t.Fatalf("Put err=%v", err)
	}
	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, errNilClient) {
		t.Fatalf("Get err=%v", err)
	}
}

func TestRedisStore_ContextCanceled(t *testing.T) {
	t.Parallel()

	s := NewRedisStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Put(ctx, types.Artifact{ID: "a"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put err=%v", err)
	}
	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get err=%v", err)
	}
}

func TestRedisStore_OptionsAndKeys(t *testing.T) {
	t.Parallel()

	s := NewRedisStore(nil, WithPrefix("t:"), WithTTL(5*time.Minute))
	if s.prefix != "t:" || s.defaultTTL != 5*time.Minute {
		t.Fatalf("prefix=%q ttl=%v", s.prefix, s.defaultTTL)
	}
	if got := s.metaKey("x"); got != "t:x:meta" {
		t.Fatalf("meta=%q", got)
	}
	if got := s.dataKey("x"); got != "t:x:data" {
		t.Fatalf("data=%q", got)
	}

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := s.ttlFor(types.Artifact{CreatedAt: created, ExpiresAt: created.Add(time.Hour)}); got != time.Hour {
		t.Fatalf("ttl=%v", got)
	}
	if got := s.ttlFor(types.Artifact{CreatedAt: created}); got != 5*time.Minute {
		t.Fatalf("ttl=%v", got)
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	s := NewRedisStore(client, WithPrefix("harbor:test:"+uuid.NewString()+":"))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	a := types.Artifact{ID: "a1", Filename: "merged.pdf", ContentType: "application/pdf", Size: 4, Pages: 2, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := s.Put(ctx, a, []byte("%PDF")); err != nil {
		t.Fatal(err)
	}
	got, data, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) || got.Filename != a.Filename || got.Pages != 2 || string(data) != "%PDF" {
		t.Fatalf("got=%+v data=%q", got, data)
	}
	if ttl := client.TTL(ctx, s.dataKey("a1")).Val(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, types.ErrArtifactNotFound) {
		t.Fatalf("err=%v", err)
	}
}
