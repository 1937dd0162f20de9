package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

// IndexBuilder is the write half of the index contract: it embeds passages
// that were chunked elsewhere and publishes them as one document index.
type IndexBuilder struct {
	embedder ports.Embedder
	writer   ports.IndexWriter
}

func NewIndexBuilder(embedder ports.Embedder, writer ports.IndexWriter) *IndexBuilder {
	return &IndexBuilder{embedder: embedder, writer: writer}
}

func (b *IndexBuilder) Build(ctx context.Context, ref domain.DocumentIndexRef, passages []domain.Passage) (*vectorindex.Handle, error) {
	if err := ref.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", err)
	}
	texts, err := passageTexts(passages)
	if err != nil {
		return nil, err
	}

	vectors, err := b.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	handle, err := vectorindex.New(ref, passages, vectors)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", err)
	}
	if err := b.writer.WriteIndex(ctx, handle); err != nil {
		return nil, fmt.Errorf("write index %s: %w", ref, err)
	}
	return handle, nil
}

func passageTexts(passages []domain.Passage) ([]string, error) {
	if len(passages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("no passages to index"))
	}
	texts := make([]string, len(passages))
	seen := make(map[string]struct{}, len(passages))
	for i, p := range passages {
		if strings.TrimSpace(p.ID) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("passage %d has no id", i))
		}
		if _, ok := seen[p.ID]; ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("duplicate passage id %q", p.ID))
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("passage %q is empty", p.ID))
		}
		seen[p.ID] = struct{}{}
		texts[i] = p.Text
	}
	return texts, nil
}

func (b *IndexBuilder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		if domain.IsKind(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrGeneration, "embed passages", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrGeneration,
			"embed passages",
			fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	return vectors, nil
}
