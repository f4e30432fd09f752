package transcache

import (
	"context"
	"strings"
)

// Plan describes what a batch would cost without running it.
type Plan struct {
	// Cached contains texts the cache can serve.
	Cached []string

	// Missing contains texts that need a provider call.
	Missing []string

	// Skipped contains texts served as-is: blank, or already in the
	// target language.
	Skipped []string
}

// PlanStats contains summary statistics for a plan.
type PlanStats struct {
	Cached  int
	Missing int
	Skipped int
}

// Stats returns summary statistics for the plan.
func (p *Plan) Stats() PlanStats {
	return PlanStats{
		Cached:  len(p.Cached),
		Missing: len(p.Missing),
		Skipped: len(p.Skipped),
	}
}

// HasWork returns true if running the batch would call the provider.
func (p *Plan) HasWork() bool {
	return len(p.Missing) > 0
}

// Plan sorts the distinct texts of p by how TranslateBatch would serve
// them. It never calls the provider and does not refresh last-used times.
// Without a store every translatable text is Missing.
func (t *Translator) Plan(ctx context.Context, p BatchParams) (*Plan, error) {
	return planBatch(ctx, p, t.cache)
}

// Plan sorts the distinct texts of p into cached, missing and skipped
// using Peek.
func (c *Cache) Plan(ctx context.Context, p BatchParams) (*Plan, error) {
	return planBatch(ctx, p, c)
}

func planBatch(ctx context.Context, p BatchParams, c *Cache) (*Plan, error) {
	if p.To == "" {
		return nil, &InvalidParamsError{Field: "to", Message: "target language is required"}
	}

	plan := &Plan{}
	seen := make(map[string]bool, len(p.Texts))
	for _, text := range p.Texts {
		if seen[text] {
			continue
		}
		seen[text] = true

		switch {
		case strings.TrimSpace(text) == "":
			plan.Skipped = append(plan.Skipped, text)
		case p.From != "" && SameLanguage(p.From, p.To):
			plan.Skipped = append(plan.Skipped, text)
		case c != nil && c.has(ctx, text, p.To):
			plan.Cached = append(plan.Cached, text)
		default:
			plan.Missing = append(plan.Missing, text)
		}
	}

	return plan, nil
}

func (c *Cache) has(ctx context.Context, text, to string) bool {
	_, ok := c.Peek(ctx, TranslateParams{Text: text, To: to})
	return ok
}
