package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/schema"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/infrastructure/persistence"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/services"
)

type envelopeBody struct {
	Result       int             `json:"result"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
	TotalRecords *int            `json:"totalRecords"`
}

func newController(t *testing.T, store ports.RecordStore) RecordsController {
	t.Helper()

	reg, err := schema.Default()
	if err != nil {
		t.Fatal(err)
	}
	return RecordsController{
		CompanyID: func(context.Context) (string, bool) { return "ACME", true },
		Facade:    services.NewRecordsFacade(store, reg),
	}
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string, params map[string]string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range params {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)

	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body=%q err=%v", rec.Body.String(), err)
	}
	return rec, env
}

func TestRecordsController_AddListGetDelete(t *testing.T) {
	t.Parallel()

	c := newController(t, persistence.NewRecordMemoryStore())
	entity := map[string]string{"entity": "designations"}

	rec, env := do(t, c.HandleSave, http.MethodPost, "/masterdata/api/designations/add", `{"code":"MGR","name":"Manager","attributes":{"grade":"M1"}}`, entity)
	if rec.Code != http.StatusOK || env.Result != 1 || env.Message != "Record created." {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
	var created types.Record
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}

	rec, env = do(t, c.HandleList, http.MethodGet, "/masterdata/api/designations?search=man&page=1&pageSize=10", "", entity)
	if rec.Code != http.StatusOK || env.TotalRecords == nil || *env.TotalRecords != 1 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	rec, env = do(t, c.HandleGetByCode, http.MethodGet, "/masterdata/api/designations/getByCode/mgr", "", map[string]string{"entity": "designations", "code": "mgr"})
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), created.ID) {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	rec, env = do(t, c.HandleSave, http.MethodPost, "/masterdata/api/designations/add", `{"id":"`+created.ID+`","code":"MGR","name":"Senior Manager"}`, entity)
	if rec.Code != http.StatusOK || env.Message != "Record updated." {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	idParams := map[string]string{"entity": "designations", "id": created.ID}
	rec, env = do(t, c.HandleDelete, http.MethodDelete, "/masterdata/api/designations/"+created.ID, "", idParams)
	if rec.Code != http.StatusOK || env.Result != 1 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
	rec, env = do(t, c.HandleGet, http.MethodGet, "/masterdata/api/designations/"+created.ID, "", idParams)
	if rec.Code != http.StatusNotFound || env.Result != 0 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestRecordsController_Failures(t *testing.T) {
	t.Parallel()

	c := newController(t, persistence.NewRecordMemoryStore())
	cases := []struct {
		name       string
		h          http.HandlerFunc
		method     string
		body       string
		params     map[string]string
		wantStatus int
		wantMsg    string
	}{
		{name: "bad json", h: c.HandleSave, method: http.MethodPost, body: "{", params: map[string]string{"entity": "departments"}, wantStatus: http.StatusBadRequest, wantMsg: "Request body is not valid JSON."},
		{name: "validation", h: c.HandleSave, method: http.MethodPost, body: `{"name":"x"}`, params: map[string]string{"entity": "departments"}, wantStatus: http.StatusBadRequest, wantMsg: "Code is required."},
		{name: "unknown entity", h: c.HandleList, method: http.MethodGet, params: map[string]string{"entity": "planets"}, wantStatus: http.StatusNotFound, wantMsg: `Unknown master data "planets".`},
		{name: "missing code", h: c.HandleGetByCode, method: http.MethodGet, params: map[string]string{"entity": "departments", "code": "NONE"}, wantStatus: http.StatusNotFound, wantMsg: "No record uses code NONE."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, env := do(t, tc.h, tc.method, "/masterdata/api/x", tc.body, tc.params)
			if rec.Code != tc.wantStatus || env.Result != 0 || env.Message != tc.wantMsg {
				t.Fatalf("status=%d env=%+v", rec.Code, env)
			}
		})
	}
}

func TestRecordsController_DuplicateCodeIsConflict(t *testing.T) {
	t.Parallel()

	c := newController(t, persistence.NewRecordMemoryStore())
	entity := map[string]string{"entity": "subcategories"}
	body := `{"code":"S1","name":"Bolts","attributes":{"category":"Hardware"}}`
	if rec, _ := do(t, c.HandleSave, http.MethodPost, "/", body, entity); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	rec, env := do(t, c.HandleSave, http.MethodPost, "/", body, entity)
	if rec.Code != http.StatusConflict || env.Result != 0 || env.Message != "Code S1 is already in use." {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestRecordsController_DeleteLockedReturnsMinusTwo(t *testing.T) {
	t.Parallel()

	c := newController(t, persistence.NewRecordMemoryStore())
	entity := map[string]string{"entity": "work-locations"}
	_, env := do(t, c.HandleSave, http.MethodPost, "/", `{"code":"HQ","name":"Head Office","attributes":{"locked":true}}`, entity)
	var created types.Record
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}

	rec, env := do(t, c.HandleDelete, http.MethodDelete, "/", "", map[string]string{"entity": "work-locations", "id": created.ID})
	if rec.Code != http.StatusLocked || env.Result != -2 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestRecordsController_MissingCompany(t *testing.T) {
	t.Parallel()

	c := newController(t, persistence.NewRecordMemoryStore())
	c.CompanyID = func(context.Context) (string, bool) { return "", false }
	rec, env := do(t, c.HandleList, http.MethodGet, "/", "", map[string]string{"entity": "voyages"})
	if rec.Code != http.StatusBadRequest || env.Message != "Company is required." {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestRecordsController_UnexpectedErrorIsLoggedNotLeaked(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	c := newController(t, failingStore{err: errors.New("pq: connection reset")})
	c.Logger = zap.New(core)

	rec, env := do(t, c.HandleList, http.MethodGet, "/masterdata/api/voyages", "", map[string]string{"entity": "voyages"})
	if rec.Code != http.StatusInternalServerError || strings.Contains(env.Message, "connection reset") {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
	if logs.Len() != 1 || logs.All()[0].Message != "masterdata request failed" {
		t.Fatalf("logs=%v", logs.All())
	}
}

type failingStore struct{ err error }

func (s failingStore) List(context.Context, string, types.Entity, types.ListQuery) ([]types.Record, int, error) {
	return nil, 0, s.err
}
func (s failingStore) Get(context.Context, string, types.Entity, string) (types.Record, error) {
	return types.Record{}, s.err
}
func (s failingStore) GetByCode(context.Context, string, types.Entity, string) (types.Record, error) {
	return types.Record{}, s.err
}
func (s failingStore) Create(context.Context, types.Record) (types.Record, error) {
	return types.Record{}, s.err
}
func (s failingStore) Update(context.Context, types.Record) (types.Record, error) {
	return types.Record{}, s.err
}
func (s failingStore) Delete(context.Context, string, types.Entity, string) error { return s.err }
