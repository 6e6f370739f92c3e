package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
	"github.com/answerdesk/retrieval/internal/metrics"
)

// Recovery ladder strategies, attempted strictly in this order.
const (
	StrategyKeywordRemoval   = "keyword_removal"
	StrategyRelaxedThreshold = "relaxed_threshold"
	StrategySingleKeyword    = "single_keyword"
	StrategyExhausted        = "exhausted"
)

// Attempt records one rung of the recovery ladder.
type Attempt struct {
	Strategy      string  `json:"strategy"`
	QueryUsed     string  `json:"query_used"`
	ThresholdUsed float64 `json:"threshold_used"`
}

// stopwords carry little search signal and are dropped first by the
// keyword_removal strategy.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"what": true, "which": true, "who": true, "how": true, "why": true,
	"where": true, "when": true, "i": true, "my": true, "your": true,
	"of": true, "for": true, "to": true, "in": true, "on": true,
	"with": true, "and": true, "or": true, "can": true, "you": true,
	"it": true, "this": true, "that": true, "about": true, "have": true,
}

// recover escalates through the ladder after both primary strategies came up
// empty. Each rung runs at most once; the first rung yielding results ends the
// ladder. Returns the recovered chunks (empty on exhaustion), the attempts
// made, and a caller-facing suggestion when nothing was found.
func (o *Orchestrator) recover(
	ctx context.Context, tenant domain.TenantID,
	text string, limit int, threshold float64,
) ([]domain.Chunk, []Attempt, string, error) {
	var attempts []Attempt

	words := strings.Fields(domain.NormalizeText(text))
	reduced := strings.Join(words, " ")

	// 1. keyword_removal: drop the least informative word. Single-word
	// queries skip straight to relaxed_threshold.
	if len(words) >= 2 {
		reduced = strings.Join(removeLeastInformative(words), " ")

		chunks, _, err := o.searchOnce(ctx, tenant, reduced, limit, threshold)
		if err != nil {
			return nil, attempts, "", err
		}
		attempts = append(attempts, Attempt{
			Strategy: StrategyKeywordRemoval, QueryUsed: reduced, ThresholdUsed: threshold,
		})
		if len(chunks) > 0 {
			o.recordRecovery(StrategyKeywordRemoval, true)
			return chunks, attempts, "", nil
		}
		o.recordRecovery(StrategyKeywordRemoval, false)
	}

	// 2. relaxed_threshold: same (possibly reduced) text, lower bar.
	relaxed := threshold - o.cfg.ThresholdStep
	if relaxed < o.cfg.ThresholdFloor {
		relaxed = o.cfg.ThresholdFloor
	}

	chunks, _, err := o.searchOnce(ctx, tenant, reduced, limit, relaxed)
	if err != nil {
		return nil, attempts, "", err
	}
	attempts = append(attempts, Attempt{
		Strategy: StrategyRelaxedThreshold, QueryUsed: reduced, ThresholdUsed: relaxed,
	})
	if len(chunks) > 0 {
		o.recordRecovery(StrategyRelaxedThreshold, true)
		return chunks, attempts, "", nil
	}
	o.recordRecovery(StrategyRelaxedThreshold, false)

	// 3. single_keyword: the most distinctive token of the original query.
	keyword := mostDistinctiveToken(words)
	if keyword != "" && keyword != reduced {
		chunks, _, err = o.searchOnce(ctx, tenant, keyword, limit, relaxed)
		if err != nil {
			return nil, attempts, "", err
		}
		attempts = append(attempts, Attempt{
			Strategy: StrategySingleKeyword, QueryUsed: keyword, ThresholdUsed: relaxed,
		})
		if len(chunks) > 0 {
			o.recordRecovery(StrategySingleKeyword, true)
			return chunks, attempts, "", nil
		}
		o.recordRecovery(StrategySingleKeyword, false)
	}

	// 4. exhausted.
	attempts = append(attempts, Attempt{
		Strategy: StrategyExhausted, QueryUsed: text, ThresholdUsed: relaxed,
	})
	o.recordRecovery(StrategyExhausted, false)
	o.logger.Info("Recovery ladder exhausted",
		zap.String("tenant", string(tenant)), zap.String("query", text))

	return []domain.Chunk{}, attempts, exhaustedSuggestion(text), nil
}

func (o *Orchestrator) recordRecovery(strategy string, recovered bool) {
	outcome := "empty"
	if recovered {
		outcome = "recovered"
	}
	metrics.RecoveryAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// exhaustedSuggestion is the caller-facing explanation produced whenever a
// retrieval ends with zero chunks.
func exhaustedSuggestion(text string) string {
	return fmt.Sprintf(
		"No results found for %q. Try rephrasing your question or using different keywords.",
		text)
}

// removeLeastInformative drops one word: the first stopword if any, otherwise
// the shortest token.
func removeLeastInformative(words []string) []string {
	drop := -1
	for i, w := range words {
		if stopwords[w] {
			drop = i
			break
		}
	}
	if drop == -1 {
		drop = 0
		for i, w := range words {
			if len(w) < len(words[drop]) {
				drop = i
			}
		}
	}

	out := make([]string, 0, len(words)-1)
	out = append(out, words[:drop]...)
	out = append(out, words[drop+1:]...)
	return out
}

// mostDistinctiveToken picks the longest token; on ties the last one wins.
func mostDistinctiveToken(words []string) string {
	best := ""
	for _, w := range words {
		if len(w) >= len(best) {
			best = w
		}
	}
	return best
}
