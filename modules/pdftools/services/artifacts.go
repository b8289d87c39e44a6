package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypeZip = "application/zip"
)

// ArtifactsFacade stamps outputs with an id and expiry before storing them.
type ArtifactsFacade struct {
	store ports.ArtifactStore
	ttl   time.Duration
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewArtifactsFacade(store ports.ArtifactStore, ttl time.Duration) *ArtifactsFacade {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ArtifactsFacade{store: store, ttl: ttl, now: time.Now, newID: uuid.NewV7}
}

func (f *ArtifactsFacade) Save(ctx context.Context, out types.Output, contentType string) (types.Artifact, error) {
	id, err := f.newID()
	if err != nil {
		return types.Artifact{}, fmt.Errorf("artifact id: %w", err)
	}
	now := f.now().UTC()
	a := types.Artifact{
		ID:          id.String(),
		Filename:    out.Filename,
		ContentType: contentType,
		Size:        int64(len(out.Data)),
		Pages:       out.Pages,
		CreatedAt:   now,
		ExpiresAt:   now.Add(f.ttl),
	}
	if err := f.store.Put(ctx, a, out.Data); err != nil {
		return types.Artifact{}, err
	}
	return a, nil
}

// SaveAll stores outputs in order and stops at the first failure.
func (f *ArtifactsFacade) SaveAll(ctx context.Context, outs []types.Output) ([]types.Artifact, error) {
	saved := make([]types.Artifact, 0, len(outs))
	for _, out := range outs {
		a, err := f.Save(ctx, out, ContentTypePDF)
		if err != nil {
			return nil, err
		}
		saved = append(saved, a)
	}
	return saved, nil
}

// Open returns types.ErrArtifactNotFound for malformed ids without asking
// the store.
func (f *ArtifactsFacade) Open(ctx context.Context, id string) (types.Artifact, []byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Artifact{}, nil, types.ErrArtifactNotFound
	}
	return f.store.Get(ctx, id)
}
