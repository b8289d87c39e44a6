package ports

import (
	"context"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

// ArtifactStore keeps output documents until they expire. Get returns
// types.ErrArtifactNotFound for unknown or expired ids.
type ArtifactStore interface {
	Put(ctx context.Context, a types.Artifact, data []byte) error
	Get(ctx context.Context, id string) (types.Artifact, []byte, error)
}
