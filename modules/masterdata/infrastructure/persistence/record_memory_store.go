package persistence

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

type memoryKey struct {
	companyID string
	entity    types.Entity
}

// RecordMemoryStore keeps records in process memory. It backs the server
// when no database is configured.
type RecordMemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]map[string]types.Record
}

func NewRecordMemoryStore() ports.RecordStore {
	return &RecordMemoryStore{records: make(map[memoryKey]map[string]types.Record)}
}

func (s *RecordMemoryStore) List(_ context.Context, companyID string, entity types.Entity, q types.ListQuery) ([]types.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	var matched []types.Record
	for _, r := range s.records[memoryKey{companyID, entity}] {
		if search != "" && !strings.Contains(strings.ToLower(r.Code), search) && !strings.Contains(strings.ToLower(r.Name), search) {
			continue
		}
		matched = append(matched, cloneRecord(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Code) < strings.ToLower(matched[j].Code)
	})

	total := len(matched)
	start := min(q.Offset(), total)
	end := total
	if q.PageSize > 0 {
		end = min(start+q.PageSize, total)
	}
	return matched[start:end], total, nil
}

func (s *RecordMemoryStore) Get(_ context.Context, companyID string, entity types.Entity, id string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[memoryKey{companyID, entity}][id]
	if !ok {
		return types.Record{}, httperr.NewNotFound("Record not found.")
	}
	return cloneRecord(r), nil
}

func (s *RecordMemoryStore) GetByCode(_ context.Context, companyID string, entity types.Entity, code string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records[memoryKey{companyID, entity}] {
		if strings.EqualFold(r.Code, code) {
			return cloneRecord(r), nil
		}
	}
	return types.Record{}, httperr.NewNotFound("No record uses code " + code + ".")
}

func (s *RecordMemoryStore) Create(_ context.Context, rec types.Record) (types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{rec.CompanyID, rec.Entity}
	if s.codeTaken(key, rec.Code, "") {
		return types.Record{}, duplicateCode(rec.Code)
	}
	if s.records[key] == nil {
		s.records[key] = make(map[string]types.Record)
	}
	s.records[key][rec.ID] = cloneRecord(rec)
	return rec, nil
}

func (s *RecordMemoryStore) Update(_ context.Context, rec types.Record) (types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{rec.CompanyID, rec.Entity}
	if _, ok := s.records[key][rec.ID]; !ok {
		return types.Record{}, httperr.NewNotFound("Record not found.")
	}
	if s.codeTaken(key, rec.Code, rec.ID) {
		return types.Record{}, duplicateCode(rec.Code)
	}
	s.records[key][rec.ID] = cloneRecord(rec)
	return rec, nil
}

func (s *RecordMemoryStore) Delete(_ context.Context, companyID string, entity types.Entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{companyID, entity}
	if _, ok := s.records[key][id]; !ok {
		return httperr.NewNotFound("Record not found.")
	}
	delete(s.records[key], id)
	return nil
}

func (s *RecordMemoryStore) codeTaken(key memoryKey, code string, exceptID string) bool {
	for id, r := range s.records[key] {
		if id != exceptID && strings.EqualFold(r.Code, code) {
			return true
		}
	}
	return false
}

func duplicateCode(code string) error {
	return httperr.NewConflict("Code " + code + " is already in use.")
}

func cloneRecord(r types.Record) types.Record {
	r.Attributes = maps.Clone(r.Attributes)
	return r
}
