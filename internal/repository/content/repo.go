package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/answerdesk/retrieval/internal/db"
	"github.com/answerdesk/retrieval/internal/domain"
)

// chunkReturnFields are the hash fields fetched for every hit. The KNN path
// additionally receives the synthetic __embedding_score field, which the store
// layer converts into a [0,1] similarity before we see it.
var chunkReturnFields = []string{"content", "url", "title", "__embedding_score"}

var textReturnFields = []string{"content", "url", "title"}

// store is the consumer interface for content search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig tunes the vector index.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo retrieves content chunks for one tenant via FT.SEARCH.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a content repository.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim}
}

// WithHNSW overrides HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

func (r *Repo) indexName() string {
	return r.keyPrefix + "chunks:idx"
}

// EnsureIndex creates the chunk index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe chunk index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(r.indexName()).
		Prefix(r.keyPrefix + "chunk:").
		Tag("tenant").
		Text("content").
		VectorHNSW("embedding", r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create chunk index: %w", err)
	}
	return nil
}

// SearchVector runs a KNN similarity search for one tenant. Hits below
// threshold are dropped. The result is ordered by similarity descending and is
// never nil.
func (r *Repo) SearchVector(
	ctx context.Context, tenant domain.TenantID,
	vector []float32, limit int, threshold float64,
) ([]domain.Chunk, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Tenant:       string(tenant),
		Vector:       vector,
		K:            limit,
		ReturnFields: chunkReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	chunks := make([]domain.Chunk, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < threshold {
			continue
		}
		chunks = append(chunks, entryToChunk(e, e.Score))
	}
	domain.SortBySimilarity(chunks)
	return chunks, nil
}

// SearchKeyword runs a full-text search for one tenant. Hits arrive ordered by
// the store's lexical relevance; every chunk carries the fixed keyword
// similarity placeholder, since BM25 scores are not comparable to vector
// similarities. The result is never nil.
func (r *Repo) SearchKeyword(
	ctx context.Context, tenant domain.TenantID,
	text string, limit int,
) ([]domain.Chunk, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.indexName(),
		Tenant:       string(tenant),
		Query:        text,
		TopK:         limit,
		ReturnFields: textReturnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	chunks := make([]domain.Chunk, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		chunks = append(chunks, entryToChunk(e, domain.KeywordSimilarity))
	}
	return chunks, nil
}

func entryToChunk(e db.SearchEntry, similarity float64) domain.Chunk {
	return domain.Chunk{
		Content:    e.Fields["content"],
		URL:        e.Fields["url"],
		Title:      e.Fields["title"],
		Similarity: similarity,
	}
}
