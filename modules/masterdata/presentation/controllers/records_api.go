package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/services"
	"github.com/jacksonlee411/harbor-erp/pkg/envelope"
)

const maxRecordBodyBytes = 1 << 20

type CompanyIDGetter func(ctx context.Context) (companyID string, ok bool)

type RecordsController struct {
	CompanyID CompanyIDGetter
	Facade    services.RecordsFacade
	Logger    *zap.Logger
}

type saveRecordRequest struct {
	ID         string         `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	IsActive   *bool          `json:"isActive"`
	Attributes map[string]any `json:"attributes"`
}

func (c RecordsController) company(w http.ResponseWriter, r *http.Request) (string, types.Entity, bool) {
	companyID, ok := c.CompanyID(r.Context())
	if !ok || strings.TrimSpace(companyID) == "" {
		envelope.Write(w, http.StatusBadRequest, envelope.Failed("Company is required."))
		return "", "", false
	}
	return companyID, types.Entity(strings.ToLower(r.PathValue("entity"))), true
}

func (c RecordsController) HandleList(w http.ResponseWriter, r *http.Request) {
	companyID, entity, ok := c.company(w, r)
	if !ok {
		return
	}
	q := types.ListQuery{
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "pageSize"),
	}
	recs, total, err := c.Facade.List(r.Context(), companyID, entity, q)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteList(w, recs, total)
}

func (c RecordsController) HandleGet(w http.ResponseWriter, r *http.Request) {
	companyID, entity, ok := c.company(w, r)
	if !ok {
		return
	}
	rec, err := c.Facade.Get(r.Context(), companyID, entity, r.PathValue("id"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteOK(w, rec, "")
}

func (c RecordsController) HandleGetByCode(w http.ResponseWriter, r *http.Request) {
	companyID, entity, ok := c.company(w, r)
	if !ok {
		return
	}
	rec, err := c.Facade.GetByCode(r.Context(), companyID, entity, r.PathValue("code"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteOK(w, rec, "")
}

// HandleSave creates the record when the body has no id and updates it
// otherwise.
func (c RecordsController) HandleSave(w http.ResponseWriter, r *http.Request) {
	companyID, entity, ok := c.company(w, r)
	if !ok {
		return
	}

	var req saveRecordRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if _, tooLarge := errors.AsType[*http.MaxBytesError](err); tooLarge {
			envelope.Write(w, http.StatusRequestEntityTooLarge, envelope.Failed("Request body is too large."))
			return
		}
		envelope.Write(w, http.StatusBadRequest, envelope.Failed("Request body is not valid JSON."))
		return
	}

	rec, err := c.Facade.Save(r.Context(), companyID, entity, services.SaveInput{
		ID:         req.ID,
		Code:       req.Code,
		Name:       req.Name,
		IsActive:   req.IsActive,
		Attributes: req.Attributes,
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	msg := "Record updated."
	if strings.TrimSpace(req.ID) == "" {
		msg = "Record created."
	}
	envelope.WriteOK(w, rec, msg)
}

func (c RecordsController) HandleDelete(w http.ResponseWriter, r *http.Request) {
	companyID, entity, ok := c.company(w, r)
	if !ok {
		return
	}
	if err := c.Facade.Delete(r.Context(), companyID, entity, r.PathValue("id")); err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteOK(w, nil, "Record deleted.")
}

func (c RecordsController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, env := envelope.FromError(err)
	if status >= http.StatusInternalServerError {
		c.logger().Error("masterdata request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	envelope.Write(w, status, env)
}

func (c RecordsController) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}
