package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jacksonlee411/harbor-erp/internal/routing"
	"github.com/jacksonlee411/harbor-erp/pkg/pdf/pdftest"
)

type envelopeBody struct {
	Result       int             `json:"result"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
	TotalRecords *int            `json:"totalRecords"`
}

func testConfig() Config {
	return Config{BaseCurrency: "PHP", DefaultCompany: "ACME", MaxConcurrent: 2}
}

func newTestHandler(t *testing.T, opts HandlerOptions) http.Handler {
	t.Helper()
	h, err := NewHandler(opts)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func serve(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body=%q err=%v", rec.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})
	for _, path := range []string{"/health", "/healthz"} {
		rec := serve(h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
			t.Fatalf("path=%s status=%d body=%q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestHealthz_DependencyDown(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{
		Config: testConfig(),
		Checks: []HealthCheck{
			{Name: "redis", Ping: func(context.Context) error { return nil }},
			{Name: "postgres", Ping: func(context.Context) error { return errors.New("connection refused") }},
		},
	})
	rec := serve(h, http.MethodGet, "/healthz", "", nil)
	var body routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable || body.Code != "dependency_unavailable" || body.Message != "postgres is unavailable." {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
	if rec := serve(h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("liveness status=%d", rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})

	rec := serve(h, http.MethodGet, "/pdf/api/nothing", "", nil)
	var body routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || body.Code != "not_found" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}

	rec = serve(h, http.MethodGet, "/pdf/api/merge", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusMethodNotAllowed || body.Code != "method_not_allowed" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
}

func TestMasterData_CompanyIsolation(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})
	acme := map[string]string{"Content-Type": "application/json"}
	globex := map[string]string{"Content-Type": "application/json", companyHeader: "GLOBEX"}

	rec := serve(h, http.MethodPost, "/masterdata/api/departments/add", `{"code":"FIN","name":"Finance"}`, acme)
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusOK || env.Result != 1 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	rec = serve(h, http.MethodGet, "/masterdata/api/departments", "", acme)
	if env := decodeEnvelope(t, rec); env.TotalRecords == nil || *env.TotalRecords != 1 {
		t.Fatalf("acme env=%+v", env)
	}
	rec = serve(h, http.MethodGet, "/masterdata/api/departments", "", globex)
	if env := decodeEnvelope(t, rec); env.TotalRecords == nil || *env.TotalRecords != 0 {
		t.Fatalf("globex env=%+v", env)
	}

	rec = serve(h, http.MethodPost, "/masterdata/api/departments/add", `{"code":"fin","name":"Finance again"}`, acme)
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusConflict || env.Result != 0 {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	rec = serve(h, http.MethodGet, "/masterdata/api/departments/getByCode/FIN", "", acme)
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"code":"FIN"`) {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}

	rec = serve(h, http.MethodGet, "/masterdata/api/spaceships", "", acme)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown entity status=%d", rec.Code)
	}
}

func TestLedgerCalculate(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})
	rec := serve(h, http.MethodPost, "/gl/api/journal-entries/calculate",
		`{"lines":[{"account":"5100","debit":"100"},{"account":"2100","credit":"100"}]}`, nil)
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusOK || env.Message != "Entry is balanced." {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestPDFInfoThroughRouter(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(pdftest.Build(t, pdftest.Options{Pages: 3})); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	rec := serve(h, http.MethodPost, "/pdf/api/info", body.String(), map[string]string{"Content-Type": mw.FormDataContentType()})
	env := decodeEnvelope(t, rec)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"pages":3`) {
		t.Fatalf("status=%d env=%+v", rec.Code, env)
	}
}

func TestRequestLog(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	h := newTestHandler(t, HandlerOptions{Config: testConfig(), Logger: zap.New(core)})

	serve(h, http.MethodGet, "/masterdata/api/voyages", "", map[string]string{companyHeader: "ACME"})
	serve(h, http.MethodGet, "/nope", "", nil)
	serve(h, http.MethodGet, "/health", "", nil)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 3 {
		t.Fatalf("entries=%d", len(entries))
	}
	first := entries[0].ContextMap()
	if entries[0].Level != zapcore.InfoLevel || first["status"] != int64(200) || first["company"] != "ACME" || first["path"] != "/masterdata/api/voyages" {
		t.Fatalf("first=%v level=%v", first, entries[0].Level)
	}
	if second := entries[1].ContextMap(); entries[1].Level != zapcore.WarnLevel || second["status"] != int64(404) || second["route_class"] != "undeclared" {
		t.Fatalf("second=%v", entries[1].ContextMap())
	}
	if entries[2].Level != zapcore.DebugLevel {
		t.Fatalf("health level=%v", entries[2].Level)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	l, err := NewLogger("debug")
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled")
	}
	if _, err := NewLogger("chatty"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewHandler_MissingAllowlist(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(HandlerOptions{Config: Config{AllowlistPath: "does/not/exist.yaml"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, HandlerOptions{Config: testConfig()})

	rec := serve(h, http.MethodGet, "/health", "", map[string]string{requestIDHeader: "req-42"})
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id=%q", got)
	}
	rec = serve(h, http.MethodGet, "/health", "", nil)
	if got := rec.Header().Get(requestIDHeader); len(got) != 36 {
		t.Fatalf("generated request id=%q", got)
	}
}
