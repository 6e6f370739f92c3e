package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
)

type mockResolver struct {
	id    domain.TenantID
	err   error
	calls int
}

func (m *mockResolver) Resolve(_ context.Context, _ string) (domain.TenantID, error) {
	m.calls++
	return m.id, m.err
}

type mockCache struct {
	cached map[string][]domain.Chunk
	puts   int
}

func newMockCache() *mockCache {
	return &mockCache{cached: map[string][]domain.Chunk{}}
}

func (m *mockCache) Get(_ context.Context, q domain.Query) ([]domain.Chunk, bool) {
	c, ok := m.cached[q.Text]
	return c, ok
}

func (m *mockCache) Put(_ context.Context, q domain.Query, chunks []domain.Chunk) {
	m.puts++
	m.cached[q.Text] = chunks
}

// mockContent keys canned responses by query text (keyword) and threshold
// (vector); anything unmapped returns empty.
type mockContent struct {
	vectorByThreshold map[float64][]domain.Chunk
	keywordByText     map[string][]domain.Chunk
	vectorErr         error
	keywordErr        error

	vectorCalls   int
	keywordCalls  int
	keywordTexts  []string
	vectorBounds  []float64
	lastVectorLen int
}

func (m *mockContent) SearchVector(
	_ context.Context, _ domain.TenantID, vec []float32, _ int, threshold float64,
) ([]domain.Chunk, error) {
	m.vectorCalls++
	m.vectorBounds = append(m.vectorBounds, threshold)
	m.lastVectorLen = len(vec)
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	if c, ok := m.vectorByThreshold[threshold]; ok {
		return c, nil
	}
	return []domain.Chunk{}, nil
}

func (m *mockContent) SearchKeyword(
	_ context.Context, _ domain.TenantID, text string, _ int,
) ([]domain.Chunk, error) {
	m.keywordCalls++
	m.keywordTexts = append(m.keywordTexts, text)
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	if c, ok := m.keywordByText[text]; ok {
		return c, nil
	}
	return []domain.Chunk{}, nil
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type fixture struct {
	resolver *mockResolver
	cache    *mockCache
	content  *mockContent
	embedder *mockEmbedder
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		resolver: &mockResolver{id: "t-42"},
		cache:    newMockCache(),
		content: &mockContent{
			vectorByThreshold: map[float64][]domain.Chunk{},
			keywordByText:     map[string][]domain.Chunk{},
		},
		embedder: &mockEmbedder{},
	}
	f.orch = New(f.resolver, f.cache, f.content, f.embedder, Config{
		DefaultLimit:     15,
		MaxLimit:         50,
		DefaultThreshold: 0.70,
		ThresholdStep:    0.15,
		ThresholdFloor:   0.35,
	}, zap.NewNop())
	return f
}

func chunksOf(contents ...string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(contents))
	for _, c := range contents {
		out = append(out, domain.Chunk{Content: c, Similarity: 0.9})
	}
	return out
}

func TestRetrieve_MalformedQuery(t *testing.T) {
	f := newFixture()

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := f.orch.Retrieve(context.Background(), text, "acme.example", 15, 0.70)
		if !errors.Is(err, domain.ErrMalformedQuery) {
			t.Errorf("Retrieve(%q) error = %v, want ErrMalformedQuery", text, err)
		}
	}
	if f.resolver.calls != 0 {
		t.Error("malformed queries must be rejected before any lookup")
	}
}

func TestRetrieve_TenantNotFoundIsEmptySuccess(t *testing.T) {
	f := newFixture()
	f.resolver.err = domain.ErrTenantNotFound

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "unknown.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unknown tenant must not error, got: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(result.Chunks))
	}
	if result.Suggestion == "" {
		t.Error("empty result must carry a suggestion")
	}
	if f.content.vectorCalls+f.content.keywordCalls != 0 {
		t.Error("no searches must run for an unknown tenant")
	}
}

func TestRetrieve_ResolverUpstreamError(t *testing.T) {
	f := newFixture()
	f.resolver.err = domain.ErrUpstreamUnavailable

	_, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestRetrieve_CacheHit(t *testing.T) {
	f := newFixture()
	f.cache.cached["waterproof connectors"] = chunksOf("cached")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.CacheHit || result.Strategy != StrategyCache {
		t.Errorf("result = %+v, want cache hit", result)
	}
	if f.content.vectorCalls+f.content.keywordCalls != 0 {
		t.Error("cache hit must skip all searches")
	}
	if f.embedder.calls != 0 {
		t.Error("cache hit must skip embedding")
	}
}

func TestRetrieve_VectorWins(t *testing.T) {
	f := newFixture()
	f.content.vectorByThreshold[0.70] = chunksOf("vector hit")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Strategy != StrategyVector {
		t.Errorf("strategy = %q, want vector", result.Strategy)
	}
	if f.content.keywordCalls != 0 {
		t.Error("keyword search must not run when vector search hits")
	}
	if f.cache.puts != 1 {
		t.Errorf("cache puts = %d, want 1", f.cache.puts)
	}
}

func TestRetrieve_KeywordFallbackOnEmptyVector(t *testing.T) {
	f := newFixture()
	f.content.keywordByText["waterproof connectors"] = chunksOf("keyword hit")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Strategy != StrategyKeyword {
		t.Errorf("strategy = %q, want keyword", result.Strategy)
	}
	if f.content.vectorCalls != 1 {
		t.Errorf("vector calls = %d, want 1 (tried first)", f.content.vectorCalls)
	}
}

func TestRetrieve_EmbedFailureFallsBackToKeyword(t *testing.T) {
	f := newFixture()
	f.embedder.err = domain.ErrEmbeddingProviderError
	f.content.keywordByText["waterproof connectors"] = chunksOf("keyword hit")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("embedding failure must not fail the request: %v", err)
	}
	if result.Strategy != StrategyKeyword {
		t.Errorf("strategy = %q, want keyword", result.Strategy)
	}
	if f.content.vectorCalls != 0 {
		t.Error("vector search must be skipped without an embedding")
	}
}

func TestRetrieve_SearchTimeoutIsZeroResults(t *testing.T) {
	f := newFixture()
	f.content.vectorErr = wrapDeadline()
	f.content.keywordByText["waterproof connectors"] = chunksOf("keyword hit")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("timeout must degrade, not fail: %v", err)
	}
	if result.Strategy != StrategyKeyword {
		t.Errorf("strategy = %q, want keyword fallback after vector timeout", result.Strategy)
	}
}

func wrapDeadline() error {
	return errors.Join(domain.ErrUpstreamUnavailable, context.DeadlineExceeded)
}

func TestRetrieve_SearchUpstreamErrorPropagates(t *testing.T) {
	f := newFixture()
	f.content.vectorErr = domain.ErrUpstreamUnavailable

	_, err := f.orch.Retrieve(context.Background(), "waterproof connectors", "acme.example", 15, 0.70)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestRetrieve_LimitClamping(t *testing.T) {
	f := newFixture()

	if got := f.orch.clampLimit(0); got != 15 {
		t.Errorf("clampLimit(0) = %d, want default 15", got)
	}
	if got := f.orch.clampLimit(200); got != 50 {
		t.Errorf("clampLimit(200) = %d, want max 50", got)
	}
	if got := f.orch.clampLimit(20); got != 20 {
		t.Errorf("clampLimit(20) = %d, want 20", got)
	}
}

func TestRetrieve_ExhaustedLadder(t *testing.T) {
	f := newFixture()

	result, err := f.orch.Retrieve(context.Background(), "IP69K waterproof connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("exhausted ladder must not error: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("chunks = %d, want 0", len(result.Chunks))
	}
	if result.Strategy != StrategyNone {
		t.Errorf("strategy = %q, want none", result.Strategy)
	}

	wantStrategies := []string{
		StrategyKeywordRemoval, StrategyRelaxedThreshold, StrategySingleKeyword, StrategyExhausted,
	}
	if len(result.Recovery) != len(wantStrategies) {
		t.Fatalf("attempts = %+v, want %v", result.Recovery, wantStrategies)
	}
	for i, want := range wantStrategies {
		if result.Recovery[i].Strategy != want {
			t.Errorf("attempt[%d] = %q, want %q", i, result.Recovery[i].Strategy, want)
		}
	}

	// keyword_removal drops the shortest token, single_keyword picks the
	// longest (last on tie).
	if result.Recovery[0].QueryUsed != "waterproof connectors" {
		t.Errorf("keyword_removal query = %q", result.Recovery[0].QueryUsed)
	}
	if result.Recovery[2].QueryUsed != "connectors" {
		t.Errorf("single_keyword query = %q", result.Recovery[2].QueryUsed)
	}
	relaxedWant := f.orch.cfg.DefaultThreshold - f.orch.cfg.ThresholdStep
	if result.Recovery[1].ThresholdUsed != relaxedWant {
		t.Errorf("relaxed threshold = %v, want %v", result.Recovery[1].ThresholdUsed, relaxedWant)
	}

	if !strings.Contains(result.Suggestion, "No results found") || !strings.Contains(result.Suggestion, "Try") {
		t.Errorf("suggestion = %q, must mention phrasing retry", result.Suggestion)
	}

	if f.cache.puts != 0 {
		t.Error("empty results must not be cached")
	}
}

func TestRetrieve_SingleWordSkipsKeywordRemoval(t *testing.T) {
	f := newFixture()

	result, err := f.orch.Retrieve(context.Background(), "connectors", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range result.Recovery {
		if a.Strategy == StrategyKeywordRemoval {
			t.Fatal("single-word query must never attempt keyword_removal")
		}
	}
}

func TestRetrieve_RecoveryAtRelaxedThreshold(t *testing.T) {
	f := newFixture()
	// Primary pass at the default threshold misses; the relaxed pass hits.
	relaxed := f.orch.cfg.DefaultThreshold - f.orch.cfg.ThresholdStep
	f.content.vectorByThreshold[relaxed] = chunksOf("relaxed hit")

	result, err := f.orch.Retrieve(context.Background(), "waterproof connectors install", "acme.example", 15, 0.70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(result.Chunks))
	}
	if result.Strategy != StrategyRelaxedThreshold {
		t.Errorf("strategy = %q, want relaxed_threshold", result.Strategy)
	}
	if result.Suggestion != "" {
		t.Errorf("suggestion = %q, must be empty on recovery", result.Suggestion)
	}
	if f.cache.puts != 1 {
		t.Errorf("cache puts = %d, recovered results are cacheable", f.cache.puts)
	}
}
