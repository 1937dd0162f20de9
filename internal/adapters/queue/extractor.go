// Package queueadapter forwards extraction requests to workers over the
// message queue and turns their envelope replies back into engine results.
package queueadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/notice-extractor/internal/adapters/envelope"
	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/usecase"
)

type Extractor struct {
	queue            ports.MessageQueue
	defaultQuestions domain.QuestionSet
}

func NewExtractor(queue ports.MessageQueue, defaultQuestions domain.QuestionSet) *Extractor {
	if len(defaultQuestions) == 0 {
		defaultQuestions = domain.DefaultQuestions
	}
	return &Extractor{queue: queue, defaultQuestions: defaultQuestions}
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Warning string          `json:"warning"`
}

func (e *Extractor) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	questions := req.Questions
	if len(questions) == 0 {
		questions = e.defaultQuestions
	}
	questions, err := questions.Normalize()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "forward extraction", err)
	}

	payload, err := json.Marshal(envelope.Request{
		OwnerID:        req.Ref.OwnerID,
		DocumentID:     req.Ref.DocumentID,
		ConversationID: req.ConversationID,
		Questions:      questions,
		Strict:         req.Strict,
	})
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}

	raw, err := e.queue.RequestExtraction(ctx, payload)
	if err != nil {
		return nil, err
	}

	var decoded reply
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode worker reply: %w", err)
	}
	if !decoded.Success {
		return nil, replyError(decoded)
	}

	// The worker already validated the answer; parsing again restores key order.
	answer, err := usecase.ParseStructuredAnswer(string(decoded.Data), questions)
	if err != nil {
		return nil, fmt.Errorf("decode worker answer: %w", err)
	}
	result := &domain.ExtractionResult{
		Answer:         answer,
		Questions:      questions,
		ConversationID: req.ConversationID,
		TurnRecorded:   req.ConversationID != "" && decoded.Warning == "",
	}
	if decoded.Warning != "" {
		return result, domain.WrapError(domain.ErrConversationStore, "worker", errors.New(decoded.Warning))
	}
	return result, nil
}

func replyError(r reply) error {
	if r.Kind == "" && r.Message == envelope.MessageDocumentNotReady {
		return domain.WrapError(domain.ErrIndexNotFound, "worker", errors.New(r.Message))
	}
	kind := domain.KindFromName(r.Kind)
	if kind == nil {
		return fmt.Errorf("worker: %s", r.Message)
	}
	return domain.WrapError(kind, "worker", errors.New(r.Message))
}
