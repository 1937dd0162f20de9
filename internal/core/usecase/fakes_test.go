package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

type embedderFake struct {
	vector []float32
	err    error
	calls  []string
}

func (f *embedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type generatorFake struct {
	response string
	err      error
	prompts  []string
}

func (f *generatorFake) GenerateJSONFromPrompt(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type loaderFake struct {
	handles   map[string]*vectorindex.Handle
	existsErr error
	loadErr   error
	loads     int
}

func (f *loaderFake) Exists(_ context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	if f.existsErr != nil {
		return domain.ExistenceFailed(f.existsErr)
	}
	if _, ok := f.handles[ref.String()]; ok {
		return domain.Present()
	}
	return domain.Absent()
}

func (f *loaderFake) Load(_ context.Context, ref domain.DocumentIndexRef) (*vectorindex.Handle, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	h, ok := f.handles[ref.String()]
	if !ok {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", errors.New("missing"))
	}
	return h, nil
}

type conversationsFake struct {
	mu        sync.Mutex
	turns     map[string][]domain.ConversationTurn
	loadErr   error
	appendErr error
	lastLimit int
	appended  int
}

func newConversationsFake() *conversationsFake {
	return &conversationsFake{turns: make(map[string][]domain.ConversationTurn)}
}

func (f *conversationsFake) LoadTurns(_ context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	turns := f.turns[conversationID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.ConversationTurn(nil), turns...), nil
}

func (f *conversationsFake) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended++
	f.turns[turn.ConversationID] = append(f.turns[turn.ConversationID], turn)
	return nil
}
