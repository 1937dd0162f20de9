package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

type writerFake struct {
	written []*vectorindex.Handle
	err     error
}

func (f *writerFake) WriteIndex(_ context.Context, h *vectorindex.Handle) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, h)
	return nil
}

func TestIndexBuilderEmbedsAndWrites(t *testing.T) {
	writer := &writerFake{}
	builder := NewIndexBuilder(&embedderFake{vector: []float32{1, 0}}, writer)
	ref := domain.DocumentIndexRef{OwnerID: "owner-1", DocumentID: "abc123"}

	handle, err := builder.Build(context.Background(), ref, []domain.Passage{
		{ID: "p1", Text: "Solicitud de devolución del impuesto sobre la renta", Page: 1},
		{ID: "p2", Text: "Periodo 2023 Q2", Page: 2},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if handle.Len() != 2 || handle.Dim() != 2 {
		t.Fatalf("unexpected handle: len=%d dim=%d", handle.Len(), handle.Dim())
	}
	if len(writer.written) != 1 || writer.written[0].Ref() != ref {
		t.Fatalf("expected one write for %s", ref)
	}
}

func TestIndexBuilderRejectsInvalidPassages(t *testing.T) {
	ref := domain.DocumentIndexRef{OwnerID: "o", DocumentID: "d"}
	cases := map[string][]domain.Passage{
		"empty":     nil,
		"no id":     {{Text: "x"}},
		"duplicate": {{ID: "p", Text: "x"}, {ID: "p", Text: "y"}},
		"blank":     {{ID: "p", Text: "  "}},
	}
	for name, passages := range cases {
		t.Run(name, func(t *testing.T) {
			writer := &writerFake{}
			builder := NewIndexBuilder(&embedderFake{vector: []float32{1}}, writer)
			_, err := builder.Build(context.Background(), ref, passages)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if len(writer.written) != 0 {
				t.Fatalf("nothing must be written")
			}
		})
	}
}

func TestIndexBuilderWrapsEmbedFailure(t *testing.T) {
	builder := NewIndexBuilder(&embedderFake{err: errors.New("model not loaded")}, &writerFake{})
	_, err := builder.Build(context.Background(), domain.DocumentIndexRef{OwnerID: "o", DocumentID: "d"}, []domain.Passage{{ID: "p", Text: "x"}})
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
}
