// Package finalize turns a planner draft into the answer shown to the user: markdown
// artifacts stripped, identifiers resolved to names, money amounts normalised and a chart
// suggested, always in that order.
package finalize

import "context"

// Answer is a finalized response.
type Answer struct {
	Text  string
	Chart Chart
}

// Finalizer runs the post-processing pipeline. It is stateless apart from its
// configuration and safe for concurrent use.
type Finalizer struct {
	resolver *Resolver
	rules    []ChartRule
}

// New creates a finalizer. A nil resolver skips identifier resolution; nil rules means
// DefaultChartRules.
func New(resolver *Resolver, rules []ChartRule) *Finalizer {
	if rules == nil {
		rules = DefaultChartRules
	}
	return &Finalizer{resolver: resolver, rules: rules}
}

// Finalize never fails: every step recovers locally and passes text through unchanged
// where it cannot do better.
func (f *Finalizer) Finalize(ctx context.Context, draft string) Answer {
	text := StripMarkdown(draft)
	if f.resolver != nil {
		text = f.resolver.Resolve(ctx, text)
	}
	text = NormalizeCurrency(text)
	return Answer{Text: text, Chart: SuggestChart(text, f.rules)}
}
