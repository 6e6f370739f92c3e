package db

// KNNQuery is the input for vector similarity search, pre-filtered to one tenant.
type KNNQuery struct {
	IndexName    string
	Tenant       string // tenant tag value, empty = no pre-filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for full-text search, pre-filtered to one tenant.
type TextQuery struct {
	IndexName    string
	Tenant       string
	Query        string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
