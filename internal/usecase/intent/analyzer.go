package intent

import (
	"strings"

	"github.com/answerdesk/retrieval/internal/domain"
)

// MinChunks is the floor for suggested chunk counts. Once a query needs any
// context at all, requesting fewer than this starves the prompt.
const MinChunks = 15

// Rule classifies queries containing any of its terms. Rules are checked in
// order; the largest matching chunk count wins, while the boolean flags
// accumulate independently.
type Rule struct {
	Name      string
	Terms     []string
	Chunks    int
	Product   bool
	Technical bool
}

// DefaultRules covers the question shapes a storefront support widget sees.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "comparison",
			Chunks: 25,
			Terms: []string{
				"compare", "comparison", "difference between", "vs ", " vs", "versus",
				"better than", "which one", "alternative",
			},
		},
		{
			Name:      "technical",
			Chunks:    20,
			Technical: true,
			Terms: []string{
				"spec", "specification", "install", "installation", "compatib",
				"material", "dimension", "voltage", "wattage", "rating", "certif",
				"warranty", "manual", "datasheet", "how do i", "how to",
			},
		},
		{
			Name:    "product",
			Chunks:  15,
			Product: true,
			Terms: []string{
				"price", "cost", "how much", "sku", "stock", "in stock",
				"availability", "available", "buy", "purchase", "order",
				"shipping", "delivery", "discount",
			},
		},
	}
}

// Analyzer derives a QueryIntent from raw query text. Pure keyword matching,
// no external calls, deterministic.
type Analyzer struct {
	rules []Rule
}

// New creates an analyzer with the default rule set.
func New() *Analyzer {
	return &Analyzer{rules: DefaultRules()}
}

// NewWithRules creates an analyzer with a custom rule set.
func NewWithRules(rules []Rule) *Analyzer {
	return &Analyzer{rules: rules}
}

// Analyze classifies query text. Flags from every matching rule accumulate;
// the suggested chunk count is the maximum across matches, floored at
// MinChunks.
func (a *Analyzer) Analyze(text string) domain.Intent {
	lower := strings.ToLower(text)

	intent := domain.Intent{SuggestedChunks: MinChunks}

	for _, rule := range a.rules {
		if !matchesAny(lower, rule.Terms) {
			continue
		}
		if rule.Chunks > intent.SuggestedChunks {
			intent.SuggestedChunks = rule.Chunks
		}
		intent.NeedsProductContext = intent.NeedsProductContext || rule.Product
		intent.NeedsTechnicalContext = intent.NeedsTechnicalContext || rule.Technical
	}

	intent.NeedsGeneralContext = !intent.NeedsProductContext && !intent.NeedsTechnicalContext
	return intent
}

func matchesAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
