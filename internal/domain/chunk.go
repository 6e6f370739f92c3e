package domain

import "sort"

// KeywordSimilarity is the fixed placeholder score assigned to pure keyword
// matches, which carry no vector distance of their own.
const KeywordSimilarity = 1.0

// Chunk is a stored unit of content eligible for retrieval.
type Chunk struct {
	Content    string  `json:"content"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Tier buckets a chunk by similarity score for prompt presentation.
type Tier int

const (
	// TierHigh holds chunks with similarity >= 0.85.
	TierHigh Tier = iota
	// TierMedium holds chunks with similarity in [0.70, 0.85).
	TierMedium
	// TierLow holds chunks with similarity < 0.70.
	TierLow
)

// Tier boundaries.
const (
	TierHighMin   = 0.85
	TierMediumMin = 0.70
)

// TierOf returns the confidence tier for a similarity score.
func TierOf(similarity float64) Tier {
	switch {
	case similarity >= TierHighMin:
		return TierHigh
	case similarity >= TierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}

// SortBySimilarity orders chunks by similarity descending, in place.
// The sort is stable so equal-score chunks keep their retrieval order.
func SortBySimilarity(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
}
