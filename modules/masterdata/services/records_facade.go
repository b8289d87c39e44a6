package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/schema"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type RecordsFacade struct {
	store   ports.RecordStore
	schemas *schema.Registry
	now     func() time.Time
	newID   func() (uuid.UUID, error)
}

func NewRecordsFacade(store ports.RecordStore, schemas *schema.Registry) RecordsFacade {
	return RecordsFacade{store: store, schemas: schemas, now: time.Now, newID: uuid.NewV7}
}

// SaveInput is the body of POST /add: no ID creates, an ID updates.
type SaveInput struct {
	ID         string
	Code       string
	Name       string
	IsActive   *bool
	Attributes map[string]any
}

func (f RecordsFacade) entity(entity types.Entity) (*schema.Entity, error) {
	e, ok := f.schemas.Lookup(entity)
	if !ok {
		return nil, httperr.NewNotFound(fmt.Sprintf("Unknown master data %q.", entity))
	}
	return e, nil
}

func (f RecordsFacade) List(ctx context.Context, companyID string, entity types.Entity, q types.ListQuery) ([]types.Record, int, error) {
	if _, err := f.entity(entity); err != nil {
		return nil, 0, err
	}
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	recs, total, err := f.store.List(ctx, companyID, entity, q)
	if err != nil {
		return nil, 0, err
	}
	if recs == nil {
		recs = make([]types.Record, 0)
	}
	return recs, total, nil
}

func (f RecordsFacade) Get(ctx context.Context, companyID string, entity types.Entity, id string) (types.Record, error) {
	if _, err := f.entity(entity); err != nil {
		return types.Record{}, err
	}
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return types.Record{}, httperr.NewBadRequest("Invalid record id.")
	}
	return f.store.Get(ctx, companyID, entity, id)
}

func (f RecordsFacade) GetByCode(ctx context.Context, companyID string, entity types.Entity, code string) (types.Record, error) {
	if _, err := f.entity(entity); err != nil {
		return types.Record{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return types.Record{}, httperr.NewBadRequest("Code is required.")
	}
	return f.store.GetByCode(ctx, companyID, entity, code)
}

// Save creates or updates a record after validating it against its schema.
func (f RecordsFacade) Save(ctx context.Context, companyID string, entity types.Entity, in SaveInput) (types.Record, error) {
	e, err := f.entity(entity)
	if err != nil {
		return types.Record{}, err
	}

	rec := types.Record{
		ID:         strings.TrimSpace(in.ID),
		Entity:     entity,
		Code:       strings.TrimSpace(in.Code),
		Name:       strings.TrimSpace(in.Name),
		CompanyID:  companyID,
		Attributes: in.Attributes,
		IsActive:   true,
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]any{}
	}

	now := f.now().UTC()
	if rec.ID == "" {
		if in.IsActive != nil {
			rec.IsActive = *in.IsActive
		}
		if err := e.Validate(rec); err != nil {
			return types.Record{}, err
		}
		id, err := f.newID()
		if err != nil {
			return types.Record{}, fmt.Errorf("new record id: %w", err)
		}
		rec.ID = id.String()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return f.store.Create(ctx, rec)
	}

	if _, err := uuid.Parse(rec.ID); err != nil {
		return types.Record{}, httperr.NewBadRequest("Invalid record id.")
	}
	existing, err := f.store.Get(ctx, companyID, entity, rec.ID)
	if err != nil {
		return types.Record{}, err
	}
	if existing.Locked() {
		return types.Record{}, httperr.NewLocked("This record is locked and cannot be changed.")
	}
	rec.IsActive = existing.IsActive
	if in.IsActive != nil {
		rec.IsActive = *in.IsActive
	}
	if err := e.Validate(rec); err != nil {
		return types.Record{}, err
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = now
	return f.store.Update(ctx, rec)
}

func (f RecordsFacade) Delete(ctx context.Context, companyID string, entity types.Entity, id string) error {
	existing, err := f.Get(ctx, companyID, entity, id)
	if err != nil {
		return err
	}
	if existing.Locked() {
		return httperr.NewLocked("This record is locked and cannot be deleted.")
	}
	return f.store.Delete(ctx, companyID, entity, existing.ID)
}
