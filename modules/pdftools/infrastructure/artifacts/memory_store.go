package artifacts

import (
	"context"
	"sync"
	"time"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

type memoryEntry struct {
	artifact types.Artifact
	data     []byte
}

// MemoryStore keeps artifacts in process until their ExpiresAt passes.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

var _ ports.ArtifactStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: map[string]memoryEntry{}}
}

func (s *MemoryStore) Put(ctx context.Context, a types.Artifact, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[a.ID] = memoryEntry{artifact: a, data: append([]byte(nil), data...)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (types.Artifact, []byte, error) {
	if err := ctx.Err(); err != nil {
		return types.Artifact{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return types.Artifact{}, nil, types.ErrArtifactNotFound
	}
	if s.expired(e) {
		delete(s.entries, id)
		return types.Artifact{}, nil, types.ErrArtifactNotFound
	}
	return e.artifact, append([]byte(nil), e.data...), nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.artifact.ExpiresAt.IsZero() && !s.now().Before(e.artifact.ExpiresAt)
}
