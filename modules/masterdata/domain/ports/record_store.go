package ports

import (
	"context"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
)

type RecordStore interface {
	List(ctx context.Context, companyID string, entity types.Entity, q types.ListQuery) ([]types.Record, int, error)
	Get(ctx context.Context, companyID string, entity types.Entity, id string) (types.Record, error)
	GetByCode(ctx context.Context, companyID string, entity types.Entity, code string) (types.Record, error)
	Create(ctx context.Context, rec types.Record) (types.Record, error)
	Update(ctx context.Context, rec types.Record) (types.Record, error)
	Delete(ctx context.Context, companyID string, entity types.Entity, id string) error
}
