package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
	healthuc "github.com/answerdesk/retrieval/internal/usecase/health"
	searchuc "github.com/answerdesk/retrieval/internal/usecase/search"
)

type mockRetriever struct {
	result *searchuc.Result
	err    error

	lastText      string
	lastTenant    string
	lastLimit     int
	lastThreshold float64
}

func (m *mockRetriever) Retrieve(
	_ context.Context, text, tenantRaw string, limit int, threshold float64,
) (*searchuc.Result, error) {
	m.lastText = text
	m.lastTenant = tenantRaw
	m.lastLimit = limit
	m.lastThreshold = threshold
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &searchuc.Result{Chunks: []domain.Chunk{}, Strategy: searchuc.StrategyNone}, nil
}

type mockAnalyzer struct {
	intent domain.Intent
}

func (m *mockAnalyzer) Analyze(_ string) domain.Intent { return m.intent }

type mockFormatter struct{}

func (m *mockFormatter) Format(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return "No relevant information found."
	}
	return "formatted context"
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestServer(retriever *mockRetriever, intent domain.Intent) *httptest.Server {
	srv := NewServer(
		retriever,
		&mockAnalyzer{intent: intent},
		&mockFormatter{},
		&mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
		zap.NewNop(),
	)
	r := chi.NewRouter()
	srv.Mount(r)
	return httptest.NewServer(r)
}

func postRetrieve(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url+"/v1/retrieve", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestRetrieveContext_OK(t *testing.T) {
	retriever := &mockRetriever{result: &searchuc.Result{
		Chunks:   []domain.Chunk{{Content: "IP68 rated", Similarity: 0.9}},
		Strategy: searchuc.StrategyVector,
	}}
	ts := newTestServer(retriever, domain.Intent{NeedsGeneralContext: true, SuggestedChunks: 15})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{
		"query":  "waterproof connectors",
		"domain": "acme.example",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Context != "formatted context" {
		t.Errorf("context = %q", body.Context)
	}
	if body.Strategy != searchuc.StrategyVector {
		t.Errorf("strategy = %q, want vector", body.Strategy)
	}
	if len(body.Chunks) != 1 {
		t.Errorf("chunks = %d, want 1", len(body.Chunks))
	}
	if body.Intent.SuggestedChunks != 15 {
		t.Errorf("intent chunks = %d, want 15", body.Intent.SuggestedChunks)
	}

	if retriever.lastTenant != "acme.example" {
		t.Errorf("tenant = %q", retriever.lastTenant)
	}
	if retriever.lastLimit != 15 {
		t.Errorf("limit = %d, want intent suggestion 15", retriever.lastLimit)
	}
}

func TestRetrieveContext_ExplicitLimitOverridesIntent(t *testing.T) {
	retriever := &mockRetriever{}
	ts := newTestServer(retriever, domain.Intent{SuggestedChunks: 25})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{
		"query":     "compare A vs B",
		"domain":    "acme.example",
		"limit":     5,
		"threshold": 0.8,
	})
	defer resp.Body.Close()

	if retriever.lastLimit != 5 {
		t.Errorf("limit = %d, want explicit 5", retriever.lastLimit)
	}
	if retriever.lastThreshold != 0.8 {
		t.Errorf("threshold = %v, want 0.8", retriever.lastThreshold)
	}
}

func TestRetrieveContext_MissingDomain(t *testing.T) {
	ts := newTestServer(&mockRetriever{}, domain.Intent{})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{"query": "hello"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, codeValidationFailed)
	}
}

func TestRetrieveContext_MalformedQuery(t *testing.T) {
	ts := newTestServer(&mockRetriever{err: domain.ErrMalformedQuery}, domain.Intent{})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{"query": "  ", "domain": "acme.example"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != codeMalformedQuery {
		t.Errorf("code = %q, want %q", body.Code, codeMalformedQuery)
	}
}

func TestRetrieveContext_UpstreamUnavailable(t *testing.T) {
	ts := newTestServer(&mockRetriever{err: domain.ErrUpstreamUnavailable}, domain.Intent{})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{"query": "q", "domain": "acme.example"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRetrieveContext_EmptyResultHasSentinelContext(t *testing.T) {
	retriever := &mockRetriever{result: &searchuc.Result{
		Chunks:     []domain.Chunk{},
		Strategy:   searchuc.StrategyNone,
		Suggestion: "No results found for \"q\". Try rephrasing your question or using different keywords.",
	}}
	ts := newTestServer(retriever, domain.Intent{})
	defer ts.Close()

	resp := postRetrieve(t, ts.URL, map[string]any{"query": "q", "domain": "acme.example"})
	defer resp.Body.Close()

	var body retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Context == "" {
		t.Error("context must never be empty")
	}
	if body.Suggestion == "" {
		t.Error("empty result must surface the suggestion")
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(&mockRetriever{}, domain.Intent{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report healthuc.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != healthuc.Healthy {
		t.Errorf("status = %q, want ok", report.Status)
	}
}
