package usecase

import (
	"context"
	"errors"
	"math"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/ports"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
)

// DiversifiedRetriever selects passages by maximal marginal relevance over
// the top similarity hits of a loaded index.
type DiversifiedRetriever struct {
	embedder        ports.Embedder
	candidateFactor int
}

func NewDiversifiedRetriever(embedder ports.Embedder, candidateFactor int) *DiversifiedRetriever {
	if candidateFactor < 1 {
		candidateFactor = domain.DefaultCandidateMultiple
	}
	return &DiversifiedRetriever{
		embedder:        embedder,
		candidateFactor: candidateFactor,
	}
}

func (r *DiversifiedRetriever) Retrieve(
	ctx context.Context,
	handle *vectorindex.Handle,
	query domain.RetrievalQuery,
) ([]domain.Passage, error) {
	if handle == nil {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "retrieve", errors.New("index handle is nil"))
	}
	k := query.K
	if k <= 0 {
		k = domain.DefaultRetrievalK
	}
	if handle.Len() == 0 {
		return []domain.Passage{}, nil
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query.Text)
	if err != nil {
		if domain.IsKind(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrGeneration, "embed retrieval query", err)
	}

	candidates, err := handle.Query(queryVector, k*r.candidateFactor)
	if err != nil {
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			return nil, domain.WrapError(domain.ErrIndexCorrupt, "query index", err)
		}
		return nil, domain.WrapError(domain.ErrIndexNotFound, "query index", err)
	}

	selected := selectMMR(candidates, k, clampWeight(query.DiversityWeight))
	out := make([]domain.Passage, 0, len(selected))
	for _, c := range selected {
		out = append(out, c.Passage)
	}
	return out, nil
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return domain.DefaultDiversityWeight
	}
	return math.Max(0, math.Min(1, w))
}

// selectMMR expects candidates in descending query similarity. Ties keep the
// earlier candidate.
func selectMMR(candidates []domain.ScoredPassage, k int, weight float64) []domain.ScoredPassage {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	picked := make([]bool, len(candidates))
	// redundancy[i] is the max similarity of candidate i to anything selected.
	redundancy := make([]float64, len(candidates))
	out := make([]domain.ScoredPassage, 0, k)

	for len(out) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			score := weight * c.Score
			if len(out) > 0 {
				score -= (1 - weight) * redundancy[i]
			}
			if score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		out = append(out, candidates[best])

		for i, c := range candidates {
			if picked[i] {
				continue
			}
			sim := vectorindex.Similarity(c.Vector, candidates[best].Vector)
			if len(out) == 1 || sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return out
}
