// Package worker turns NATS extraction requests into engine calls and owns
// the caller-side retry policy.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kirillkom/notice-extractor/internal/adapters/envelope"
	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/notice-extractor/internal/observability/logging"
	"github.com/kirillkom/notice-extractor/internal/observability/metrics"
)

const serviceName = "worker"

type Handler struct {
	extractor ports.DocumentExtractor
	executor  *resilience.Executor
	metrics   *metrics.WorkerMetrics
	timeout   time.Duration
}

// NewHandler builds the request handler. executor decides how generation
// and temporary failures are retried; workerMetrics may be nil.
func NewHandler(
	extractor ports.DocumentExtractor,
	executor *resilience.Executor,
	workerMetrics *metrics.WorkerMetrics,
	timeout time.Duration,
) *Handler {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Handler{
		extractor: extractor,
		executor:  executor,
		metrics:   workerMetrics,
		timeout:   timeout,
	}
}

// Handle decodes one request and always produces an envelope reply. The
// returned error is for logging only.
func (h *Handler) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	started := time.Now()
	if h.metrics != nil {
		h.metrics.StartRequest()
	}

	var body envelope.Request
	var result *domain.ExtractionResult
	var err error
	if decodeErr := json.Unmarshal(payload, &body); decodeErr != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	} else {
		result, err = h.extract(ctx, body.ToDomain())
	}

	if h.metrics != nil {
		h.metrics.FinishRequest(serviceName, time.Since(started), err)
	}

	logger := logging.FromContext(ctx)
	if result == nil {
		if err == nil {
			err = errors.New("extractor returned no result")
		}
		logger.Warn("worker_extraction_failed",
			"owner_id", body.OwnerID,
			"document_id", body.DocumentID,
			"kind", domain.FailureKind(err),
			"error", err.Error(),
		)
	} else {
		logger.Info("worker_extraction_done",
			"owner_id", body.OwnerID,
			"document_id", body.DocumentID,
			"passages", len(result.Passages),
			"turn_recorded", result.TurnRecorded,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	reply, marshalErr := json.Marshal(envelope.FromResult(result, err))
	if marshalErr != nil {
		return nil, marshalErr
	}
	return reply, err
}

// extract retries generation and temporary failures with backoff. The first
// answer-format failure switches the request to strict mode and is retried
// once right away. Index failures are never retried.
func (h *Handler) extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	var result *domain.ExtractionResult
	var partialErr error
	strictRetried := req.Strict

	err := h.executor.Execute(ctx, "worker.extract", func(ctx context.Context) error {
		out, err := h.extractor.Extract(ctx, req)
		if err != nil && domain.IsAnswerFormat(err) && !strictRetried {
			strictRetried = true
			req.Strict = true
			logging.FromContext(ctx).Info("worker_strict_retry",
				"document_id", req.Ref.DocumentID,
				"kind", domain.FailureKind(err),
			)
			out, err = h.extractor.Extract(ctx, req)
		}
		if out != nil {
			result = out
			partialErr = err
			return nil
		}
		return err
	}, resilience.ClassifyByKind(domain.ErrGeneration, domain.ErrTemporary))
	if err != nil {
		return nil, err
	}
	return result, partialErr
}

// RetryRecorder adapts WorkerMetrics to resilience.Config.OnRetry.
func RetryRecorder(workerMetrics *metrics.WorkerMetrics) func(operation string, attempt int, err error) {
	return func(_ string, _ int, err error) {
		if workerMetrics != nil {
			workerMetrics.RecordRetry(serviceName, err)
		}
	}
}
