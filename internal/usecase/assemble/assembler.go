package assemble

import (
	"strings"
	"unicode/utf8"

	"github.com/answerdesk/retrieval/internal/domain"
)

// EmptyContext is returned when no chunks survive retrieval. Downstream
// prompt construction requires a non-empty context string.
const EmptyContext = "No relevant information found in the knowledge base for this question."

const preamble = `Use the following knowledge base excerpts to answer. ` +
	`Prefer HIGH CONFIDENCE excerpts; treat MEDIUM CONFIDENCE as supporting ` +
	`detail and LOW CONFIDENCE as background only.`

// Config holds per-tier character budgets and the overall token ceiling.
type Config struct {
	HighChunkChars   int
	MediumChunkChars int
	LowChunkChars    int
	MaxTokens        int
}

// DefaultConfig returns the budgets used in production.
func DefaultConfig() Config {
	return Config{
		HighChunkChars:   1200,
		MediumChunkChars: 500,
		LowChunkChars:    300,
		MaxTokens:        3000,
	}
}

// Assembler formats retrieved chunks into a prompt-ready context block.
type Assembler struct {
	cfg Config
}

// New creates an assembler. Zero or negative budgets fall back to defaults.
func New(cfg Config) *Assembler {
	def := DefaultConfig()
	if cfg.HighChunkChars <= 0 {
		cfg.HighChunkChars = def.HighChunkChars
	}
	if cfg.MediumChunkChars <= 0 {
		cfg.MediumChunkChars = def.MediumChunkChars
	}
	if cfg.LowChunkChars <= 0 {
		cfg.LowChunkChars = def.LowChunkChars
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Assembler{cfg: cfg}
}

// Format renders chunks as tiered sections in HIGH, MEDIUM, LOW order, with
// descending similarity inside each tier. Output stays under the token
// ceiling (estimated as characters / 4); once the budget is exhausted the
// remaining chunks are dropped.
func (a *Assembler) Format(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return EmptyContext
	}

	sorted := make([]domain.Chunk, len(chunks))
	copy(sorted, chunks)
	domain.SortBySimilarity(sorted)

	tiers := map[domain.Tier][]domain.Chunk{}
	for _, c := range sorted {
		tier := domain.TierOf(c.Similarity)
		tiers[tier] = append(tiers[tier], c)
	}

	maxChars := a.cfg.MaxTokens * 4

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n")

	sections := []struct {
		tier   domain.Tier
		header string
		budget int
	}{
		{domain.TierHigh, "=== HIGH CONFIDENCE ===", a.cfg.HighChunkChars},
		{domain.TierMedium, "=== MEDIUM CONFIDENCE ===", a.cfg.MediumChunkChars},
		{domain.TierLow, "=== LOW CONFIDENCE ===", a.cfg.LowChunkChars},
	}

	for _, s := range sections {
		group := tiers[s.tier]
		if len(group) == 0 {
			continue
		}

		b.WriteString("\n")
		b.WriteString(s.header)
		b.WriteString("\n")

		for _, c := range group {
			entry := renderChunk(c, s.budget)
			if b.Len()+len(entry) > maxChars {
				return b.String()
			}
			b.WriteString(entry)
		}
	}

	return b.String()
}

func renderChunk(c domain.Chunk, budget int) string {
	var b strings.Builder

	if c.Title != "" {
		b.WriteString("## ")
		b.WriteString(c.Title)
		b.WriteString("\n")
	}
	b.WriteString(truncate(c.Content, budget))
	b.WriteString("\n")
	if c.URL != "" {
		b.WriteString("Source: ")
		b.WriteString(c.URL)
		b.WriteString("\n")
	}
	return b.String()
}

// truncate cuts content to the budget and marks the cut, so the model does
// not treat a clipped excerpt as complete.
func truncate(content string, budget int) string {
	if len(content) <= budget {
		return content
	}
	// Never cut in the middle of a multi-byte rune.
	for budget > 0 && !utf8.RuneStart(content[budget]) {
		budget--
	}
	cut := strings.TrimRight(content[:budget], " \t\n")
	return cut + "..."
}
