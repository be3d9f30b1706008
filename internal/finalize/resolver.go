package finalize

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/comigor/askdata-go/internal/config"
	"github.com/comigor/askdata-go/internal/datastore"
	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/metrics"
)

var uuidPattern = regexp.MustCompile(`\b[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}\b`)

// Resolver replaces opaque identifiers in answer text with display names. It has two
// tiers: UUIDs go through one batched name-directory lookup per answer, and legacy labels
// come from a static table. Nothing is cached between answers.
type Resolver struct {
	dir    datastore.NameDirectory
	labels *regexp.Regexp
	names  map[string]string // lower-cased label -> display name
}

// NewResolver builds a resolver. dir may be nil to disable the UUID tier.
func NewResolver(dir datastore.NameDirectory, labels []config.LegacyLabel) *Resolver {
	r := &Resolver{dir: dir, names: make(map[string]string, len(labels))}

	sorted := make([]string, 0, len(labels))
	for _, l := range labels {
		key := strings.ToLower(l.Label)
		if _, dup := r.names[key]; dup || key == "" {
			continue
		}
		r.names[key] = l.Name
		sorted = append(sorted, l.Label)
	}
	// Longest first so "Leader 12" is preferred over "Leader 1".
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	if len(sorted) == 0 {
		return r
	}

	alts := make([]string, len(sorted))
	for i, label := range sorted {
		alts[i] = wholeLabel(label)
	}
	r.labels = regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
	return r
}

// wholeLabel anchors label on word boundaries so "Leader 1" never matches inside "Leader 10"
// and a bare number is never replaced inside an unrelated one.
func wholeLabel(label string) string {
	p := regexp.QuoteMeta(label)
	if first, _ := utf8.DecodeRuneInString(label); isWord(first) {
		p = `\b` + p
	}
	if last, _ := utf8.DecodeLastRuneInString(label); isWord(last) {
		p += `\b`
	}
	return p
}

func isWord(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// replacement swaps text[start:end] for name.
type replacement struct {
	start, end int
	name       string
}

// Resolve returns text with every resolvable identifier replaced. Both tiers scan the
// original text and are applied in one pass, so a resolved name is never rewritten again.
// Lookup failures are logged and leave the affected identifiers unchanged.
func (r *Resolver) Resolve(ctx context.Context, text string) string {
	reps := append(r.uuidReplacements(ctx, text), r.labelReplacements(text)...)
	if len(reps) == 0 {
		return text
	}
	sort.SliceStable(reps, func(i, j int) bool { return reps[i].start < reps[j].start })

	var b strings.Builder
	last := 0
	for _, rep := range reps {
		if rep.start < last {
			continue
		}
		b.WriteString(text[last:rep.start])
		b.WriteString(rep.name)
		last = rep.end
	}
	b.WriteString(text[last:])
	return b.String()
}

func (r *Resolver) labelReplacements(text string) []replacement {
	if r.labels == nil {
		return nil
	}
	var out []replacement
	for _, loc := range r.labels.FindAllStringIndex(text, -1) {
		if name, ok := r.names[strings.ToLower(text[loc[0]:loc[1]])]; ok {
			out = append(out, replacement{start: loc[0], end: loc[1], name: name})
		}
	}
	return out
}

func (r *Resolver) uuidReplacements(ctx context.Context, text string) []replacement {
	if r.dir == nil {
		return nil
	}
	locs := uuidPattern.FindAllStringIndex(text, -1)
	var ids []string
	seen := map[string]bool{}
	for _, loc := range locs {
		id := strings.ToLower(text[loc[0]:loc[1]])
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := r.dir.LookupNames(ctx, ids)
	if err != nil {
		metrics.ResolverFailures.Inc()
		logger.L.Warn("identifier lookup failed; leaving identifiers unresolved", "ids", len(ids), "error", err)
		return nil
	}
	if len(found) < len(ids) {
		logger.L.Debug("some identifiers have no display name", "requested", len(ids), "resolved", len(found))
	}
	names := make(map[string]string, len(found))
	for id, name := range found {
		names[strings.ToLower(id)] = name
	}
	var out []replacement
	for _, loc := range locs {
		if name, ok := names[strings.ToLower(text[loc[0]:loc[1]])]; ok {
			out = append(out, replacement{start: loc[0], end: loc[1], name: name})
		}
	}
	return out
}
