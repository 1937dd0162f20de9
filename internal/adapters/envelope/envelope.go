// Package envelope holds the JSON request and response shapes shared by the
// HTTP API and the NATS worker.
package envelope

import (
	"errors"
	"strings"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

const (
	MessageDocumentNotReady = "document not ready"
	WarningTurnNotRecorded  = "conversation turn was not recorded"
)

type Request struct {
	OwnerID        string   `json:"ownerId,omitempty"`
	DocumentID     string   `json:"documentId"`
	ConversationID string   `json:"conversationId,omitempty"`
	Questions      []string `json:"questions,omitempty"`
	Strict         bool     `json:"strict,omitempty"`
}

func (r Request) ToDomain() domain.ExtractionRequest {
	return domain.ExtractionRequest{
		Ref: domain.DocumentIndexRef{
			OwnerID:    strings.TrimSpace(r.OwnerID),
			DocumentID: strings.TrimSpace(r.DocumentID),
		},
		ConversationID: strings.TrimSpace(r.ConversationID),
		Questions:      domain.QuestionSet(r.Questions),
		Strict:         r.Strict,
	}
}

type Response struct {
	Success bool                     `json:"success"`
	Data    *domain.StructuredAnswer `json:"data,omitempty"`
	Message string                   `json:"message,omitempty"`
	Kind    string                   `json:"kind,omitempty"`
	Warning string                   `json:"warning,omitempty"`
}

// FromResult renders an engine outcome. A result paired with a conversation
// store error is still a success, with a warning.
func FromResult(result *domain.ExtractionResult, err error) Response {
	if result != nil && (err == nil || domain.IsKind(err, domain.ErrConversationStore)) {
		answer := result.Answer
		resp := Response{Success: true, Data: &answer}
		if err != nil {
			resp.Warning = WarningTurnNotRecorded
		}
		return resp
	}
	return Failure(err)
}

func Failure(err error) Response {
	if err == nil {
		err = errors.New("unknown failure")
	}
	if domain.IsIndexUnavailable(err) {
		return Response{Success: false, Message: MessageDocumentNotReady}
	}
	return Response{
		Success: false,
		Message: failureMessage(err),
		Kind:    domain.FailureKind(err),
	}
}

func failureMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid request: " + rootCause(err).Error()
	case domain.IsAnswerFormat(err):
		return "model output could not be turned into an answer"
	case domain.IsKind(err, domain.ErrGeneration):
		return "answer generation failed"
	case domain.IsKind(err, domain.ErrConversationStore):
		return "conversation history unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

// rootCause unwraps to the innermost error so user-facing messages skip the
// operation prefixes added by domain.WrapError.
func rootCause(err error) error {
	for {
		switch wrapped := err.(type) {
		case interface{ Unwrap() []error }:
			causes := wrapped.Unwrap()
			if len(causes) == 0 {
				return err
			}
			err = causes[len(causes)-1]
		case interface{ Unwrap() error }:
			next := wrapped.Unwrap()
			if next == nil {
				return err
			}
			err = next
		default:
			return err
		}
	}
}
