package ports

import (
	"context"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

// IndexStore fetches persisted index snapshots. Fetch must only ever observe
// fully written snapshots and returns domain.ErrIndexNotFound when absent.
type IndexStore interface {
	Fetch(ctx context.Context, ref domain.DocumentIndexRef) ([]byte, error)
	Exists(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult
}

// IndexLoader produces a ready-to-query handle for one document.
type IndexLoader interface {
	Load(ctx context.Context, ref domain.DocumentIndexRef) (*vectorindex.Handle, error)
	Exists(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator runs one prompt through the generation capability.
type AnswerGenerator interface {
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// ConversationStore is an ordered, append-only log of turns per conversation.
// LoadTurns returns the newest limit turns in chronological order (all when
// limit <= 0) and an empty slice for unknown ids.
type ConversationStore interface {
	LoadTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
}

// MessageQueue carries extraction requests between the API edge and workers.
type MessageQueue interface {
	RequestExtraction(ctx context.Context, payload []byte) ([]byte, error)
	SubscribeExtractionRequests(ctx context.Context, handler func(context.Context, []byte) ([]byte, error)) error
}

// IndexWriter persists a freshly built index so that IndexLoader can serve it.
type IndexWriter interface {
	WriteIndex(ctx context.Context, h *vectorindex.Handle) error
}
