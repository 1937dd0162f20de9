package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/notice-extractor/internal/adapters/envelope"
	"github.com/kirillkom/notice-extractor/internal/config"
	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/observability/logging"
	"github.com/kirillkom/notice-extractor/internal/observability/metrics"
)

const (
	ownerIDHeader     = "X-Owner-Id"
	maxRequestBody    = 1 << 20
	backpressureWait  = 50 * time.Millisecond
	serviceName       = "api"
	defaultMaxRequest = 8
)

// BreakerStates reports circuit breaker states by name for /healthz.
type BreakerStates func() map[string]string

type Router struct {
	cfg               config.Config
	extractor         ports.DocumentExtractor
	indexes           ports.IndexStatusReader
	serverMetrics     *metrics.HTTPServerMetrics
	extractionMetrics *metrics.ExtractionMetrics
	breakers          BreakerStates
}

type RouterOption func(*Router)

func WithMetrics(server *metrics.HTTPServerMetrics, extraction *metrics.ExtractionMetrics) RouterOption {
	return func(rt *Router) {
		rt.serverMetrics = server
		rt.extractionMetrics = extraction
	}
}

func WithBreakerStates(states BreakerStates) RouterOption {
	return func(rt *Router) {
		rt.breakers = states
	}
}

func NewRouter(
	cfg config.Config,
	extractor ports.DocumentExtractor,
	indexes ports.IndexStatusReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:       cfg,
		extractor: extractor,
		indexes:   indexes,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/extractions", rt.extract)
	api.HandleFunc("GET /v1/documents/{documentId}/index", rt.documentIndexStatus)

	maxInFlight := rt.cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxRequest
	}
	limitedAPI := rateLimitMiddleware(
		backpressureMiddleware(api, maxInFlight, backpressureWait, rt.recordRejected),
		newOwnerLimiters(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst),
		rt.recordRejected,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.serverMetrics != nil {
		mux.Handle("GET /metrics", rt.serverMetrics.Handler())
	}
	mux.Handle("/v1/", limitedAPI)

	var handler http.Handler = mux
	if rt.serverMetrics != nil {
		handler = rt.serverMetrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.breakers != nil {
		payload["breakers"] = rt.breakers()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	var body envelope.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&body); err != nil {
		writeFailure(w, domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json")))
		return
	}
	body.OwnerID = r.Header.Get(ownerIDHeader)
	if strings.TrimSpace(body.OwnerID) == "" {
		writeFailure(w, domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New(ownerIDHeader+" header is required")))
		return
	}

	req := body.ToDomain()
	started := time.Now()
	result, err := rt.extractor.Extract(r.Context(), req)
	if rt.extractionMetrics != nil {
		rt.extractionMetrics.ObserveResult(result, err)
	}

	logger := logging.FromContext(r.Context())
	resp := envelope.FromResult(result, err)
	if !resp.Success {
		logger.Warn("extraction_failed",
			"owner_id", req.Ref.OwnerID,
			"document_id", req.Ref.DocumentID,
			"kind", domain.FailureKind(err),
			"error", errorString(err),
		)
		writeJSON(w, mapErrorToHTTPStatus(err), resp)
		return
	}

	logger.Info("extraction_done",
		"owner_id", req.Ref.OwnerID,
		"document_id", req.Ref.DocumentID,
		"conversation_id", result.ConversationID,
		"passages", len(result.Passages),
		"history_turns", result.HistoryTurns,
		"turn_recorded", result.TurnRecorded,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, resp)
}

type indexStatusResponse struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
}

func (rt *Router) documentIndexStatus(w http.ResponseWriter, r *http.Request) {
	ref := domain.DocumentIndexRef{
		OwnerID:    strings.TrimSpace(r.Header.Get(ownerIDHeader)),
		DocumentID: strings.TrimSpace(r.PathValue("documentId")),
	}
	if err := ref.Validate(); err != nil {
		writeFailure(w, domain.WrapError(domain.ErrInvalidInput, "check index", err))
		return
	}

	result := rt.indexes.CheckIndex(r.Context(), ref)
	switch result.Status {
	case domain.ExistencePresent, domain.ExistenceAbsent:
		writeJSON(w, http.StatusOK, indexStatusResponse{DocumentID: ref.DocumentID, Status: string(result.Status)})
	default:
		logging.FromContext(r.Context()).Error("index_check_failed",
			"document_id", ref.DocumentID,
			"error", errorString(result.Err),
		)
		if domain.IsKind(result.Err, domain.ErrInvalidInput) {
			writeFailure(w, result.Err)
			return
		}
		// An undetermined check is not a "document not ready" answer.
		writeFailure(w, domain.WrapError(domain.ErrTemporary, "check index", errors.New("index existence could not be determined")))
	}
}

func (rt *Router) recordRejected(reason string) {
	if rt.serverMetrics != nil {
		rt.serverMetrics.RecordRejected(serviceName, reason)
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), envelope.Failure(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("http_response_encode_failed", "error", err.Error())
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
