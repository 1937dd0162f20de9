package vectorindex

import (
	"errors"
	"testing"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

var testRef = domain.DocumentIndexRef{OwnerID: "u-1", DocumentID: "abc123"}

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := New(testRef,
		[]domain.Passage{
			{ID: "p0", Text: "income tax refund request", Page: 1},
			{ID: "p1", Text: "period 2023 Q2", Page: 2, Offset: 40},
			{ID: "p2", Text: "unrelated footer"},
		},
		[][]float32{{1, 0, 0}, {0.8, 0.6, 0}, {0, 0, 1}},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestQueryOrdersByDescendingSimilarity(t *testing.T) {
	h := newTestHandle(t)

	hits, err := h.Query([]float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	want := []string{"p0", "p1", "p2"}
	for i, hit := range hits {
		if hit.Passage.ID != want[i] {
			t.Fatalf("hit %d = %s, want %s", i, hit.Passage.ID, want[i])
		}
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Fatalf("scores not descending: %v %v %v", hits[0].Score, hits[1].Score, hits[2].Score)
	}
}

func TestQueryLimitsToK(t *testing.T) {
	h := newTestHandle(t)
	hits, err := h.Query([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestQueryRejectsDimensionMismatch(t *testing.T) {
	h := newTestHandle(t)
	_, err := h.Query([]float32{1, 0}, 2)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQueryTieKeepsIndexOrder(t *testing.T) {
	h, err := New(testRef,
		[]domain.Passage{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[][]float32{{0, 1}, {0, 2}, {0, 3}},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	hits, err := h.Query([]float32{0, 1}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if hits[0].Passage.ID != "a" || hits[1].Passage.ID != "b" || hits[2].Passage.ID != "c" {
		t.Fatalf("expected stable order for equal scores, got %s %s %s", hits[0].Passage.ID, hits[1].Passage.ID, hits[2].Passage.ID)
	}
}

func TestEmptyHandleQueryReturnsNothing(t *testing.T) {
	h, err := New(testRef, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	hits, err := h.Query([]float32{1}, 5)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected no hits and no error, got %d, %v", len(hits), err)
	}
}

func TestNewCopiesInput(t *testing.T) {
	vectors := [][]float32{{1, 0}}
	h, err := New(testRef, []domain.Passage{{ID: "a"}}, vectors)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	vectors[0][0] = 0
	hits, _ := h.Query([]float32{1, 0}, 1)
	if hits[0].Score < 0.99 {
		t.Fatalf("handle was mutated through caller slice, score=%v", hits[0].Score)
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity([]float32{1, 0}, []float32{1, 0}); s < 0.999 {
		t.Fatalf("expected ~1, got %v", s)
	}
	if s := Similarity([]float32{1, 0}, []float32{0, 0}); s != 0 {
		t.Fatalf("expected 0 for zero vector, got %v", s)
	}
	if s := Similarity([]float32{1}, []float32{1, 0}); s != 0 {
		t.Fatalf("expected 0 for mismatched dims, got %v", s)
	}
}

func TestQueryReturnsVectorCopies(t *testing.T) {
	h := newTestHandle(t)

	hits, err := h.Query([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	hits[0].Vector[0] = -1

	again, err := h.Query([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if again[0].Passage.ID != "p0" || again[0].Vector[0] != 1 {
		t.Fatalf("handle was mutated through query result: %+v", again[0])
	}
	_, vectors := h.Entries()
	if vectors[0][0] != 1 {
		t.Fatalf("entries changed after mutating query result: %v", vectors[0])
	}
}

func TestSimilarityMatchesCosine(t *testing.T) {
	s := Similarity([]float32{1, 0}, []float32{0.6, 0.8})
	if s < 0.599 || s > 0.601 {
		t.Fatalf("expected ~0.6, got %v", s)
	}
}
