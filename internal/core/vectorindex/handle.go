// Package vectorindex holds the read-only, per-invocation nearest-neighbour
// index over passage embeddings and the snapshot format it is loaded from.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

var ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

// Handle is immutable after construction; it is safe to query from several
// goroutines but is expected to be owned by a single invocation.
type Handle struct {
	ref      domain.DocumentIndexRef
	dim      int
	passages []domain.Passage
	vectors  [][]float32
	mags     []float32
}

// New builds a handle from parallel passage and vector slices. Inputs are
// copied.
func New(ref domain.DocumentIndexRef, passages []domain.Passage, vectors [][]float32) (*Handle, error) {
	if len(passages) != len(vectors) {
		return nil, fmt.Errorf("vectorindex: passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}
	h := &Handle{ref: ref}
	if len(passages) == 0 {
		return h, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vectorindex: empty vector at 0")
	}
	h.dim = dim
	h.passages = make([]domain.Passage, len(passages))
	h.vectors = make([][]float32, len(vectors))
	h.mags = make([]float32, len(vectors))
	copy(h.passages, passages)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(vec), dim)
		}
		h.vectors[i] = append([]float32(nil), vec...)
		h.mags[i] = search.Float32s(h.vectors[i]).Magnitude()
	}
	return h, nil
}

func (h *Handle) Ref() domain.DocumentIndexRef { return h.ref }
func (h *Handle) Len() int                     { return len(h.passages) }
func (h *Handle) Dim() int                     { return h.dim }

// Entries returns copies of the passages and their vectors in index order.
func (h *Handle) Entries() ([]domain.Passage, [][]float32) {
	passages := append([]domain.Passage(nil), h.passages...)
	vectors := make([][]float32, len(h.vectors))
	for i, vec := range h.vectors {
		vectors[i] = append([]float32(nil), vec...)
	}
	return passages, vectors
}

// Query returns up to k passages ordered by descending cosine similarity to
// the query. Equal scores keep index order. k <= 0 returns every passage.
// Returned vectors are copies.
func (h *Handle) Query(query []float32, k int) ([]domain.ScoredPassage, error) {
	if len(h.passages) == 0 {
		return nil, nil
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), h.dim)
	}

	q := search.Float32s(query)
	qm := q.Magnitude()
	out := make([]domain.ScoredPassage, 0, len(h.passages))
	for i := range h.passages {
		out = append(out, domain.ScoredPassage{
			Passage: h.passages[i],
			Vector:  append([]float32(nil), h.vectors[i]...),
			Score:   cosine(q, h.vectors[i], qm, h.mags[i]),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// Similarity is the cosine similarity of two vectors; zero-magnitude or
// mismatched vectors score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	va, vb := search.Float32s(a), search.Float32s(b)
	return cosine(va, b, va.Magnitude(), vb.Magnitude())
}

func cosine(a search.Float32s, b []float32, ma, mb float32) float64 {
	if ma == 0 || mb == 0 {
		return 0
	}
	s := 1 - float64(cosineDistanceWithMagnitude(a, b, ma, mb))
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}
