package persistence

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

// SchemaSQL creates the masterdata schema. It is idempotent.
//
//go:embed schema.sql
var SchemaSQL string

const pgUniqueViolation = "23505"

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type RecordPGStore struct {
	pool pgBeginner
}

func NewRecordPGStore(pool pgBeginner) ports.RecordStore {
	return &RecordPGStore{pool: pool}
}

const recordColumns = `
	  id::text,
	  company_id,
	  code,
	  name,
	  attributes,
	  is_active,
	  created_at,
	  updated_at`

func (s *RecordPGStore) begin(ctx context.Context, companyID string) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_company', $1, true);`, companyID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func (s *RecordPGStore) List(ctx context.Context, companyID string, entity types.Entity, q types.ListQuery) ([]types.Record, int, error) {
	tx, err := s.begin(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	pattern := "%" + escapeLike(q.Search) + "%"

	var total int
	if err := tx.QueryRow(ctx, `
	SELECT count(*)
	FROM masterdata.records
	WHERE company_id = $1 AND entity = $2
	  AND ($3 = '' OR code ILIKE $4 OR name ILIKE $4)
	`, companyID, string(entity), q.Search, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := tx.Query(ctx, `
	SELECT`+recordColumns+`
	FROM masterdata.records
	WHERE company_id = $1 AND entity = $2
	  AND ($3 = '' OR code ILIKE $4 OR name ILIKE $4)
	ORDER BY lower(code) ASC, id ASC
	LIMIT $5 OFFSET $6
	`, companyID, string(entity), q.Search, pattern, q.PageSize, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows, entity)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *RecordPGStore) Get(ctx context.Context, companyID string, entity types.Entity, id string) (types.Record, error) {
	return s.getOne(ctx, companyID, entity, `
	SELECT`+recordColumns+`
	FROM masterdata.records
	WHERE company_id = $1 AND entity = $2 AND id = $3::uuid
	`, id, "Record not found.")
}

func (s *RecordPGStore) GetByCode(ctx context.Context, companyID string, entity types.Entity, code string) (types.Record, error) {
	return s.getOne(ctx, companyID, entity, `
	SELECT`+recordColumns+`
	FROM masterdata.records
	WHERE company_id = $1 AND entity = $2 AND lower(code) = lower($3)
	`, code, "No record uses code "+code+".")
}

func (s *RecordPGStore) getOne(ctx context.Context, companyID string, entity types.Entity, query string, arg string, notFound string) (types.Record, error) {
	tx, err := s.begin(ctx, companyID)
	if err != nil {
		return types.Record{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rec, err := scanRecord(tx.QueryRow(ctx, query, companyID, string(entity), arg), entity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Record{}, httperr.NewNotFound(notFound)
		}
		return types.Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

func (s *RecordPGStore) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	attrs, err := json.Marshal(attributesOrEmpty(rec.Attributes))
	if err != nil {
		return types.Record{}, fmt.Errorf("encode attributes: %w", err)
	}

	tx, err := s.begin(ctx, rec.CompanyID)
	if err != nil {
		return types.Record{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
	INSERT INTO masterdata.records (id, company_id, entity, code, name, attributes, is_active, created_at, updated_at)
	VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	`, rec.ID, rec.CompanyID, string(rec.Entity), rec.Code, rec.Name, attrs, rec.IsActive, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return types.Record{}, mapWriteError(err, rec.Code)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

func (s *RecordPGStore) Update(ctx context.Context, rec types.Record) (types.Record, error) {
	attrs, err := json.Marshal(attributesOrEmpty(rec.Attributes))
	if err != nil {
		return types.Record{}, fmt.Errorf("encode attributes: %w", err)
	}

	tx, err := s.begin(ctx, rec.CompanyID)
	if err != nil {
		return types.Record{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	UPDATE masterdata.records
	SET code = $4, name = $5, attributes = $6::jsonb, is_active = $7, updated_at = $8
	WHERE company_id = $1 AND entity = $2 AND id = $3::uuid
	`, rec.CompanyID, string(rec.Entity), rec.ID, rec.Code, rec.Name, attrs, rec.IsActive, rec.UpdatedAt)
	if err != nil {
		return types.Record{}, mapWriteError(err, rec.Code)
	}
	if tag.RowsAffected() == 0 {
		return types.Record{}, httperr.NewNotFound("Record not found.")
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Record{}, err
	}
	return rec, nil
}

func (s *RecordPGStore) Delete(ctx context.Context, companyID string, entity types.Entity, id string) error {
	tx, err := s.begin(ctx, companyID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
	DELETE FROM masterdata.records
	WHERE company_id = $1 AND entity = $2 AND id = $3::uuid
	`, companyID, string(entity), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("Record not found.")
	}
	return tx.Commit(ctx)
}

func scanRecord(row pgx.Row, entity types.Entity) (types.Record, error) {
	var (
		rec   types.Record
		attrs []byte
	)
	if err := row.Scan(&rec.ID, &rec.CompanyID, &rec.Code, &rec.Name, &attrs, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return types.Record{}, err
	}
	rec.Entity = entity
	rec.Attributes = map[string]any{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return types.Record{}, fmt.Errorf("decode attributes of %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func mapWriteError(err error, code string) error {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil && pgErr.Code == pgUniqueViolation {
		return duplicateCode(code)
	}
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func attributesOrEmpty(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}
