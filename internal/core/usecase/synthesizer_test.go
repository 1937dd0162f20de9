package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func TestSynthesizeBuildsOrderedPrompt(t *testing.T) {
	gen := &generatorFake{response: `{"q1":"a1"}`}
	s := NewAnswerSynthesizer(gen)

	passages := []domain.Passage{
		{ID: "p2", Text: "most relevant passage"},
		{ID: "p1", Text: "second passage", Page: 3},
	}
	history := []domain.ConversationTurn{
		{Question: "older question", Answer: "older answer", CreatedAt: time.Unix(1, 0)},
		{Question: "newer question", Answer: "newer answer", CreatedAt: time.Unix(2, 0)},
	}

	raw, err := s.Synthesize(context.Background(), passages, history, domain.QuestionSet{"q1", "q2"}, false)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if raw != `{"q1":"a1"}` {
		t.Fatalf("expected raw generator output, got %q", raw)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected exactly one generation call, got %d", len(gen.prompts))
	}

	prompt := gen.prompts[0]
	ordered := []string{"JSON object", "most relevant passage", "page=3", "second passage", "older question", "newer answer", "Questions:", "1. q1", "2. q2"}
	last := -1
	for _, fragment := range ordered {
		idx := strings.Index(prompt, fragment)
		if idx < 0 {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
		if idx < last {
			t.Fatalf("fragment %q out of order:\n%s", fragment, prompt)
		}
		last = idx
	}
	if strings.Contains(prompt, "could not be parsed") {
		t.Fatalf("strict instruction must not appear in normal mode")
	}
}

func TestSynthesizeStrictModeAddsInstruction(t *testing.T) {
	gen := &generatorFake{response: "{}"}
	if _, err := NewAnswerSynthesizer(gen).Synthesize(context.Background(), nil, nil, domain.QuestionSet{"q1"}, true); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.Contains(gen.prompts[0], "could not be parsed") {
		t.Fatalf("expected strict instruction in prompt:\n%s", gen.prompts[0])
	}
	if strings.Contains(gen.prompts[0], "Previous conversation") {
		t.Fatalf("empty history must not render a dialogue section")
	}
}

func TestSynthesizeWrapsGeneratorFailure(t *testing.T) {
	gen := &generatorFake{err: errors.New("connection refused")}
	_, err := NewAnswerSynthesizer(gen).Synthesize(context.Background(), nil, nil, domain.QuestionSet{"q1"}, false)
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected no retry inside synthesizer, got %d calls", len(gen.prompts))
	}
}

func TestSynthesizeRejectsEmptyQuestionSet(t *testing.T) {
	gen := &generatorFake{}
	_, err := NewAnswerSynthesizer(gen).Synthesize(context.Background(), nil, nil, nil, false)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("generator must not be called")
	}
}
