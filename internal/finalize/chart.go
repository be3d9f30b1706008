package finalize

import "strings"

// Chart is a suggested visualization category. ChartNone means no suggestion.
type Chart string

const (
	ChartNone Chart = ""
	ChartBar  Chart = "bar"
	ChartLine Chart = "line"
	ChartPie  Chart = "pie"
)

// ChartRule maps a case-insensitive phrase to a chart category.
type ChartRule struct {
	Phrase string
	Chart  Chart
}

// DefaultChartRules are checked in order; the first rule whose phrase occurs wins.
var DefaultChartRules = []ChartRule{
	{Phrase: "bar chart", Chart: ChartBar},
	{Phrase: "line chart", Chart: ChartLine},
	{Phrase: "trend", Chart: ChartLine},
	{Phrase: "pie chart", Chart: ChartPie},
}

// SuggestChart returns the chart of the first matching rule, or ChartNone.
func SuggestChart(text string, rules []ChartRule) Chart {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if strings.Contains(lower, strings.ToLower(r.Phrase)) {
			return r.Chart
		}
	}
	return ChartNone
}
