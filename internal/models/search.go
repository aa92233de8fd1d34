package models

// MatchType tells which retrieval path produced a search result.
type MatchType string

const (
	MatchVector MatchType = "vector"
	MatchText   MatchType = "text"
	MatchBoth   MatchType = "both"
)

// SearchMode names the strategy chain that actually ran for a search call,
// after any in-flight degradation.
type SearchMode string

const (
	ModeVector         SearchMode = "vector"
	ModeHybrid         SearchMode = "hybrid"
	ModeVectorDegraded SearchMode = "vector-only (degraded)"
	ModeTextDegraded   SearchMode = "text-only (degraded)"
)

// SearchResult is one ranked hit. VectorScore and TextScore are nil when the
// corresponding retrieval path did not score the chunk; CombinedScore is
// computed only from scores already normalized into [0,1].
type SearchResult struct {
	ChunkID       string            `json:"chunk_id"`
	Content       string            `json:"content"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	VectorScore   *float64          `json:"vector_score,omitempty"`
	TextScore     *float64          `json:"text_score,omitempty"`
	CombinedScore float64           `json:"combined_score"`
	RerankScore   *float64          `json:"rerank_score,omitempty"`
	MatchType     MatchType         `json:"match_type"`
}

// VectorHit is a raw nearest-neighbour hit from the vector index.
type VectorHit struct {
	ChunkID    string
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// TextHit is a raw full-text hit from the relational store. Rank is already
// normalized into [0,1].
type TextHit struct {
	ChunkID  string
	Content  string
	Metadata map[string]string
	Rank     float64
}

// VectorPoint is a vector plus payload to upsert into the vector index.
type VectorPoint struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Score returns a pointer to v, for the optional score fields above.
func Score(v float64) *float64 { return &v }
