package intent

import (
	"testing"
)

func TestAnalyze_Comparison(t *testing.T) {
	a := New()

	intent := a.Analyze("Compare product A vs product B")
	if intent.SuggestedChunks != 25 {
		t.Errorf("chunks = %d, want 25", intent.SuggestedChunks)
	}
}

func TestAnalyze_Technical(t *testing.T) {
	a := New()

	intent := a.Analyze("What are the installation specs for this pump?")
	if !intent.NeedsTechnicalContext {
		t.Error("expected technical context flag")
	}
	if intent.SuggestedChunks != 20 {
		t.Errorf("chunks = %d, want 20", intent.SuggestedChunks)
	}
	if intent.NeedsGeneralContext {
		t.Error("general flag must be false when technical matched")
	}
}

func TestAnalyze_Product(t *testing.T) {
	a := New()

	intent := a.Analyze("What is the price of SKU ABC123?")
	if !intent.NeedsProductContext {
		t.Error("expected product context flag")
	}
	if intent.SuggestedChunks < MinChunks {
		t.Errorf("chunks = %d, want >= %d", intent.SuggestedChunks, MinChunks)
	}
}

func TestAnalyze_General(t *testing.T) {
	a := New()

	intent := a.Analyze("Hello, I have a question about your company")
	if !intent.NeedsGeneralContext {
		t.Error("expected general context flag")
	}
	if intent.NeedsProductContext || intent.NeedsTechnicalContext {
		t.Error("product/technical flags must be false for general queries")
	}
	if intent.SuggestedChunks != MinChunks {
		t.Errorf("chunks = %d, want floor %d", intent.SuggestedChunks, MinChunks)
	}
}

func TestAnalyze_MultipleFlagsLargestChunksWins(t *testing.T) {
	a := New()

	// Both technical (installation) and product (price) language.
	intent := a.Analyze("What is the price and installation procedure?")
	if !intent.NeedsProductContext || !intent.NeedsTechnicalContext {
		t.Fatalf("expected both flags, got %+v", intent)
	}
	if intent.SuggestedChunks != 20 {
		t.Errorf("chunks = %d, want 20 (max of matching rules)", intent.SuggestedChunks)
	}
	if intent.NeedsGeneralContext {
		t.Error("general flag must be false when another context matched")
	}
}

func TestAnalyze_ComparisonPlusTechnical(t *testing.T) {
	a := New()

	intent := a.Analyze("Compare the voltage rating of model X versus model Y")
	if intent.SuggestedChunks != 25 {
		t.Errorf("chunks = %d, want 25 (comparison dominates)", intent.SuggestedChunks)
	}
	if !intent.NeedsTechnicalContext {
		t.Error("expected technical flag alongside comparison")
	}
}

func TestAnalyze_CaseInsensitive(t *testing.T) {
	a := New()

	lower := a.Analyze("what is the price?")
	upper := a.Analyze("WHAT IS THE PRICE?")
	if lower != upper {
		t.Errorf("case must not change classification: %+v vs %+v", lower, upper)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New()

	first := a.Analyze("compare installation costs")
	for i := 0; i < 10; i++ {
		if got := a.Analyze("compare installation costs"); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}
