package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/internal/routing"
	ledgercontrollers "github.com/jacksonlee411/harbor-erp/modules/ledger/presentation/controllers"
	mdports "github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/schema"
	mdpersistence "github.com/jacksonlee411/harbor-erp/modules/masterdata/infrastructure/persistence"
	mdcontrollers "github.com/jacksonlee411/harbor-erp/modules/masterdata/presentation/controllers"
	mdservices "github.com/jacksonlee411/harbor-erp/modules/masterdata/services"
	pdfports "github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/ports"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/infrastructure/artifacts"
	pdfcontrollers "github.com/jacksonlee411/harbor-erp/modules/pdftools/presentation/controllers"
	pdfservices "github.com/jacksonlee411/harbor-erp/modules/pdftools/services"
	"github.com/jacksonlee411/harbor-erp/pkg/pdf"
)

type HandlerOptions struct {
	Config    Config
	Logger    *zap.Logger
	Records   mdports.RecordStore
	Artifacts pdfports.ArtifactStore
	Companies CompanyResolver
	Checks    []HealthCheck
}

// NewHandler wires every module behind the allowlisted router. Stores left
// nil in opts fall back to in-memory implementations.
func NewHandler(opts HandlerOptions) (http.Handler, error) {
	router, classifier, err := newRouter(opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	companies := opts.Companies
	if companies == nil {
		companies = newStaticCompanyResolver(opts.Config.Companies)
	}
	return withRequestLog(logger, withCompanyContext(classifier, companies, opts.Config.DefaultCompany, router)), nil
}

func newRouter(opts HandlerOptions) (*routing.Router, *routing.Classifier, error) {
	allowlistPath := opts.Config.AllowlistPath
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, nil, err
		}
		allowlistPath = p
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	records := opts.Records
	if records == nil {
		records = mdpersistence.NewRecordMemoryStore()
	}
	artifactStore := opts.Artifacts
	if artifactStore == nil {
		artifactStore = artifacts.NewMemoryStore()
	}
	schemas, err := schema.Default()
	if err != nil {
		return nil, nil, err
	}

	router := routing.NewRouter(classifier)
	router.OnPanic = func(req *http.Request, recovered any, stack []byte) {
		logger.Error("handler panic",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Any("panic", recovered),
			zap.ByteString("stack", stack),
		)
	}

	router.HandleFunc(routing.RouteClassOps, http.MethodGet, "/health", handleLiveness)
	router.HandleFunc(routing.RouteClassOps, http.MethodGet, "/healthz", readinessHandler(logger, opts.Checks))

	toolkit := pdfcontrollers.ToolkitController{
		Toolkit: pdfservices.NewToolkit(logger.Named("pdf"), 0).WithLimits(pdf.Limits{
			MaxDecodedBytes: opts.Config.MaxDecodedBytes,
			MaxImagePixels:  opts.Config.MaxImagePixels,
		}),
		Gate:           pdfservices.NewGate(opts.Config.MaxConcurrent),
		Artifacts:      pdfservices.NewArtifactsFacade(artifactStore, opts.Config.ArtifactTTL),
		MaxUploadBytes: opts.Config.MaxUploadBytes,
		Logger:         logger.Named("pdf"),
	}
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/pdf/api/merge", toolkit.HandleMerge)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/pdf/api/split", toolkit.HandleSplit)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/pdf/api/compress", toolkit.HandleCompress)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/pdf/api/edit", toolkit.HandleEdit)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/pdf/api/info", toolkit.HandleInfo)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodGet, "/pdf/api/artifacts/{id}", toolkit.HandleArtifact)

	masterdata := mdcontrollers.RecordsController{
		CompanyID: currentCompanyID,
		Facade:    mdservices.NewRecordsFacade(records, schemas),
		Logger:    logger.Named("masterdata"),
	}
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodGet, "/masterdata/api/{entity}", masterdata.HandleList)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/masterdata/api/{entity}/add", masterdata.HandleSave)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodGet, "/masterdata/api/{entity}/{id}", masterdata.HandleGet)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodDelete, "/masterdata/api/{entity}/{id}", masterdata.HandleDelete)
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodGet, "/masterdata/api/{entity}/getByCode/{code}", masterdata.HandleGetByCode)

	ledger := ledgercontrollers.JournalController{BaseCurrency: opts.Config.BaseCurrency}
	router.HandleFunc(routing.RouteClassInternalAPI, http.MethodPost, "/gl/api/journal-entries/calculate", ledger.HandleCalculate)

	return router, classifier, nil
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
