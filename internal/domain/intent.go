package domain

// Intent is the classification of a query's information need. Flags are
// independent; SuggestedChunks is the largest value any matching rule asked for.
type Intent struct {
	NeedsProductContext   bool `json:"needs_product_context"`
	NeedsTechnicalContext bool `json:"needs_technical_context"`
	NeedsGeneralContext   bool `json:"needs_general_context"`
	SuggestedChunks       int  `json:"suggested_chunks"`
}
