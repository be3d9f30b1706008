package finalize

import "strings"

const fence = "```"

// StripMarkdown removes code-fence artifacts the reasoning service sometimes echoes:
// whole fence lines (```sql, ```) are dropped and stray inline fences are removed.
// Fenced content and all other text are kept as is.
func StripMarkdown(text string) string {
	if !strings.Contains(text, fence) {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isFenceLine(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, strings.ReplaceAll(line, fence, ""))
	}
	return strings.Join(kept, "\n")
}

// isFenceLine reports whether a trimmed line is only a fence with an optional language tag.
func isFenceLine(line string) bool {
	tag, ok := strings.CutPrefix(line, fence)
	return ok && !strings.ContainsAny(tag, " \t`")
}
