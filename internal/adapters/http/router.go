package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aimiten/readiness-assistant/internal/config"
	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
	"github.com/aimiten/readiness-assistant/internal/core/usecase"
	"github.com/aimiten/readiness-assistant/internal/observability/metrics"
)

const (
	serviceName      = "readiness-api"
	backpressureWait = 250 * time.Millisecond
	maxJSONBodyBytes = 1 << 20
)

type Dependencies struct {
	Assessments *usecase.StoreRegistry
	Sessions    ports.SessionGateway
	Documents   ports.DocumentResolver
	Tasks       ports.RemediationService
	Exporter    ports.ReviewExporter
	Metrics     *metrics.HTTPServerMetrics
	Logger      *slog.Logger
}

type Router struct {
	cfg         config.Config
	assessments *usecase.StoreRegistry
	sessions    ports.SessionGateway
	documents   ports.DocumentResolver
	tasks       ports.RemediationService
	exporter    ports.ReviewExporter
	metrics     *metrics.HTTPServerMetrics
	logger      *slog.Logger
	jwtSecret   []byte
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:         cfg,
		assessments: deps.Assessments,
		sessions:    deps.Sessions,
		documents:   deps.Documents,
		tasks:       deps.Tasks,
		exporter:    deps.Exporter,
		metrics:     deps.Metrics,
		logger:      logger,
		jwtSecret:   []byte(cfg.JWTSecret),
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/assessments", rt.createAssessment)
	api.HandleFunc("GET /v1/assessments", rt.listAssessments)
	api.HandleFunc("GET /v1/assessments/{id}", rt.getAssessment)
	api.HandleFunc("DELETE /v1/assessments/{id}", rt.deleteAssessment)
	api.HandleFunc("PUT /v1/assessments/{id}/documents", rt.selectDocuments)
	api.HandleFunc("PUT /v1/assessments/{id}/valuation", rt.selectValuation)
	api.HandleFunc("POST /v1/assessments/{id}/uploads", rt.uploadDocuments)
	api.HandleFunc("POST /v1/assessments/{id}/start", rt.startAssessment)
	api.HandleFunc("PUT /v1/assessments/{id}/answers/{question_id}", rt.answerQuestion)
	api.HandleFunc("PUT /v1/assessments/{id}/position", rt.moveToQuestion)
	api.HandleFunc("POST /v1/assessments/{id}/analyze", rt.analyzeAssessment)
	api.HandleFunc("POST /v1/assessments/{id}/reset", rt.resetAssessment)
	api.HandleFunc("GET /v1/assessments/{id}/review", rt.getReview)
	api.HandleFunc("GET /v1/assessments/{id}/export", rt.exportReview)
	api.HandleFunc("GET /v1/documents/{id}/content", rt.getDocumentContent)
	api.HandleFunc("GET /v1/valuations/{id}/documents", rt.getValuationDocuments)
	api.HandleFunc("GET /v1/tasks", rt.listTasks)
	api.HandleFunc("POST /v1/tasks/{id}/complete", rt.completeTask)
	api.HandleFunc("DELETE /v1/tasks/{id}", rt.deleteTask)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", rt.authMiddleware(api))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a size limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("request body is empty"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode body", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read body", err)
	}
	return raw, nil
}
