package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

var tracer = otel.Tracer("notice-extractor/usecase")

// ExtractionLimits tunes one engine. Zero fields fall back to defaults; a nil
// DiversityWeight means DefaultDiversityWeight, so an explicit 0 is kept.
type ExtractionLimits struct {
	RetrievalK        int
	CandidateFactor   int
	DiversityWeight   *float64
	HistoryTurns      int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

// StateObserver is told how long each state took and how it ended. Terminal
// states report the whole invocation.
type StateObserver func(state domain.ExtractionState, elapsed time.Duration, err error)

type ExtractionEngine struct {
	loader           ports.IndexLoader
	retriever        *DiversifiedRetriever
	synthesizer      *AnswerSynthesizer
	conversations    ports.ConversationStore
	defaultQuestions domain.QuestionSet
	limits           ExtractionLimits
	diversityWeight  float64
	observer         StateObserver
	now              func() time.Time
}

// NewExtractionEngine wires the pipeline. conversations may be nil, in which
// case history is neither read nor written.
func NewExtractionEngine(
	loader ports.IndexLoader,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	conversations ports.ConversationStore,
	defaultQuestions domain.QuestionSet,
	limits ExtractionLimits,
) *ExtractionEngine {
	if limits.RetrievalK <= 0 {
		limits.RetrievalK = domain.DefaultRetrievalK
	}
	if limits.CandidateFactor <= 0 {
		limits.CandidateFactor = domain.DefaultCandidateMultiple
	}
	diversityWeight := domain.DefaultDiversityWeight
	if w := limits.DiversityWeight; w != nil && *w >= 0 && *w <= 1 {
		diversityWeight = *w
	}
	if limits.HistoryTurns <= 0 {
		limits.HistoryTurns = domain.DefaultHistoryTurnsWindow
	}
	if limits.RetrievalTimeout <= 0 {
		limits.RetrievalTimeout = 5 * time.Second
	}
	if limits.GenerationTimeout <= 0 {
		limits.GenerationTimeout = 60 * time.Second
	}
	if len(defaultQuestions) == 0 {
		defaultQuestions = domain.DefaultQuestions
	}

	return &ExtractionEngine{
		loader:           loader,
		retriever:        NewDiversifiedRetriever(embedder, limits.CandidateFactor),
		synthesizer:      NewAnswerSynthesizer(generator),
		conversations:    conversations,
		defaultQuestions: defaultQuestions,
		limits:           limits,
		diversityWeight:  diversityWeight,
		now:              time.Now,
	}
}

func (e *ExtractionEngine) SetObserver(observer StateObserver) {
	e.observer = observer
}

// CheckIndex reports whether the document's index exists.
func (e *ExtractionEngine) CheckIndex(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	if err := ref.Validate(); err != nil {
		return domain.ExistenceFailed(domain.WrapError(domain.ErrInvalidInput, "check index", err))
	}
	checkCtx, cancel := context.WithTimeout(ctx, e.limits.RetrievalTimeout)
	defer cancel()
	return e.loader.Exists(checkCtx, ref)
}

// Extract runs one invocation through IndexLoading, Retrieving, Synthesizing
// and Parsing. Failures come back as *domain.ExtractionError and leave the
// conversation untouched. A non-nil result with a ErrConversationStore error
// means the answer is valid but the turn was not recorded.
func (e *ExtractionEngine) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	started := e.now()
	ctx, span := tracer.Start(ctx, "extraction.extract", trace.WithAttributes(
		attribute.String("owner_id", req.Ref.OwnerID),
		attribute.String("document_id", req.Ref.DocumentID),
		attribute.Bool("strict", req.Strict),
	))
	defer span.End()

	result, err := e.run(ctx, req)
	if err != nil && result == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.FailureKind(err))
		e.observe(domain.StateFailed, e.now().Sub(started), err)
		return nil, err
	}

	e.observe(domain.StateDone, e.now().Sub(started), nil)
	span.SetAttributes(
		attribute.Int("passages", len(result.Passages)),
		attribute.Bool("turn_recorded", result.TurnRecorded),
	)
	if err != nil {
		span.RecordError(err)
	}
	return result, err
}

func (e *ExtractionEngine) run(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	questions, err := e.prepare(req)
	if err != nil {
		return nil, &domain.ExtractionError{State: domain.StateIdle, Err: err}
	}
	conversationID := strings.TrimSpace(req.ConversationID)

	var handle *vectorindex.Handle
	if err := e.stage(ctx, domain.StateIndexLoading, func(ctx context.Context) error {
		loaded, loadErr := e.loadIndex(ctx, req.Ref)
		handle = loaded
		return loadErr
	}); err != nil {
		return nil, err
	}

	var passages []domain.Passage
	if err := e.stage(ctx, domain.StateRetrieving, func(ctx context.Context) error {
		found, retrieveErr := e.retrieve(ctx, handle, questions)
		passages = found
		return retrieveErr
	}); err != nil {
		return nil, err
	}

	var history []domain.ConversationTurn
	var raw string
	if err := e.stage(ctx, domain.StateSynthesizing, func(ctx context.Context) error {
		turns, historyErr := e.loadHistory(ctx, conversationID)
		if historyErr != nil {
			return historyErr
		}
		history = turns
		output, genErr := e.synthesize(ctx, passages, history, questions, req.Strict)
		raw = output
		return genErr
	}); err != nil {
		return nil, err
	}

	var answer domain.StructuredAnswer
	if err := e.stage(ctx, domain.StateParsing, func(context.Context) error {
		parsed, parseErr := ParseStructuredAnswer(raw, questions)
		answer = parsed
		return parseErr
	}); err != nil {
		slog.Warn("extraction_answer_rejected",
			"document_id", req.Ref.DocumentID,
			"kind", domain.FailureKind(err),
			"raw_length", len(raw),
		)
		return nil, err
	}

	result := &domain.ExtractionResult{
		Answer:         answer,
		Questions:      questions,
		Passages:       passages,
		HistoryTurns:   len(history),
		ConversationID: conversationID,
	}
	if err := e.recordTurn(ctx, conversationID, questions, answer); err != nil {
		slog.Warn("extraction_turn_not_recorded",
			"conversation_id", conversationID,
			"error", err.Error(),
		)
		return result, err
	}
	result.TurnRecorded = e.conversations != nil && conversationID != ""
	return result, nil
}

func (e *ExtractionEngine) prepare(req domain.ExtractionRequest) (domain.QuestionSet, error) {
	if err := req.Ref.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract", err)
	}
	questions := req.Questions
	if len(questions) == 0 {
		questions = e.defaultQuestions
	}
	normalized, err := questions.Normalize()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract", err)
	}
	return normalized, nil
}

// stage runs one state under its own span and reports it to the observer.
func (e *ExtractionEngine) stage(ctx context.Context, state domain.ExtractionState, fn func(context.Context) error) error {
	started := e.now()
	ctx, span := tracer.Start(ctx, "extraction."+string(state))
	defer span.End()

	err := fn(ctx)
	e.observe(state, e.now().Sub(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.FailureKind(err))
		return &domain.ExtractionError{State: state, Err: err}
	}
	return nil
}

func (e *ExtractionEngine) observe(state domain.ExtractionState, elapsed time.Duration, err error) {
	if e.observer != nil {
		e.observer(state, elapsed, err)
	}
}

func (e *ExtractionEngine) loadIndex(ctx context.Context, ref domain.DocumentIndexRef) (*vectorindex.Handle, error) {
	loadCtx, cancel := context.WithTimeout(ctx, e.limits.RetrievalTimeout)
	defer cancel()

	existence := e.loader.Exists(loadCtx, ref)
	switch existence.Status {
	case domain.ExistenceAbsent:
		return nil, domain.WrapError(domain.ErrIndexNotFound, "check index", fmt.Errorf("no index for %s", ref))
	case domain.ExistenceError:
		return nil, asIndexFailure("check index", existence.Err)
	}

	handle, err := e.loader.Load(loadCtx, ref)
	if err != nil {
		return nil, asIndexFailure("load index", err)
	}
	return handle, nil
}

func asIndexFailure(operation string, err error) error {
	if err == nil {
		err = errors.New("unknown index failure")
	}
	if domain.IsIndexUnavailable(err) {
		return err
	}
	return domain.WrapError(domain.ErrIndexNotFound, operation, err)
}

func (e *ExtractionEngine) retrieve(ctx context.Context, handle *vectorindex.Handle, questions domain.QuestionSet) ([]domain.Passage, error) {
	retrieveCtx, cancel := context.WithTimeout(ctx, e.limits.RetrievalTimeout)
	defer cancel()

	return e.retriever.Retrieve(retrieveCtx, handle, domain.RetrievalQuery{
		Text:            strings.Join(questions, "\n"),
		K:               e.limits.RetrievalK,
		DiversityWeight: e.diversityWeight,
	})
}

func (e *ExtractionEngine) loadHistory(ctx context.Context, conversationID string) ([]domain.ConversationTurn, error) {
	if e.conversations == nil || conversationID == "" {
		return nil, nil
	}
	turns, err := e.conversations.LoadTurns(ctx, conversationID, e.limits.HistoryTurns)
	if err != nil {
		if domain.IsKind(err, domain.ErrConversationStore) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrConversationStore, "load conversation", err)
	}
	return turns, nil
}

func (e *ExtractionEngine) synthesize(
	ctx context.Context,
	passages []domain.Passage,
	history []domain.ConversationTurn,
	questions domain.QuestionSet,
	strict bool,
) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.limits.GenerationTimeout)
	defer cancel()
	return e.synthesizer.Synthesize(genCtx, passages, history, questions, strict)
}

func (e *ExtractionEngine) recordTurn(
	ctx context.Context,
	conversationID string,
	questions domain.QuestionSet,
	answer domain.StructuredAnswer,
) error {
	if e.conversations == nil || conversationID == "" {
		return nil
	}
	encoded, err := json.Marshal(answer)
	if err != nil {
		return domain.WrapError(domain.ErrConversationStore, "encode turn", err)
	}
	err = e.conversations.AppendTurn(ctx, domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Question:       renderQuestionSet(questions),
		Answer:         string(encoded),
		CreatedAt:      e.now().UTC(),
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrConversationStore) {
			return err
		}
		return domain.WrapError(domain.ErrConversationStore, "append conversation turn", err)
	}
	return nil
}
