package domain

// Passage is one retrieved span of document text.
type Passage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Page   int    `json:"page,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ScoredPassage is a passage returned by an index query together with its
// similarity to the query and its stored embedding.
type ScoredPassage struct {
	Passage Passage
	Vector  []float32
	Score   float64
}

type RetrievalQuery struct {
	Text            string
	K               int
	DiversityWeight float64
}

const (
	DefaultRetrievalK         = 20
	DefaultDiversityWeight    = 0.25
	DefaultCandidateMultiple  = 4
	DefaultHistoryTurnsWindow = 10
)
