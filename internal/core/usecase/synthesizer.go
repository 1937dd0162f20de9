package usecase

import (
	"context"
	"errors"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
)

// AnswerSynthesizer makes exactly one generation call per invocation. Retry is
// the caller's concern.
type AnswerSynthesizer struct {
	generator ports.AnswerGenerator
}

func NewAnswerSynthesizer(generator ports.AnswerGenerator) *AnswerSynthesizer {
	return &AnswerSynthesizer{generator: generator}
}

func (s *AnswerSynthesizer) Synthesize(
	ctx context.Context,
	passages []domain.Passage,
	history []domain.ConversationTurn,
	questions domain.QuestionSet,
	strict bool,
) (string, error) {
	if len(questions) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "synthesize", errors.New("question set is empty"))
	}

	raw, err := s.generator.GenerateJSONFromPrompt(ctx, buildExtractionPrompt(passages, history, questions, strict))
	if err != nil {
		if domain.IsKind(err, domain.ErrGeneration) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	return raw, nil
}
