// Package expander derives a bounded set of alternate phrasings from one
// input query. The expansion set is ephemeral and never persisted; its size
// cap bounds downstream embedding and search cost.
package expander

import (
	"regexp"
	"strings"
)

// synonymMap is a fixed domain vocabulary for startup and business phrasing.
// Only the first synonym of the first matched term is injected, to avoid
// drifting the query away from its original meaning.
var synonymMap = []struct {
	term     string
	synonyms []string
}{
	{"validate", []string{"test", "verify", "check", "confirm", "prove"}},
	{"customer", []string{"user", "buyer", "client", "consumer", "market"}},
	{"product", []string{"solution", "offering", "service", "MVP", "prototype"}},
	{"startup", []string{"company", "business", "venture", "enterprise"}},
	{"founder", []string{"entrepreneur", "CEO", "leader", "owner"}},
	{"growth", []string{"scale", "expansion", "traction", "momentum"}},
	{"hire", []string{"recruit", "employ", "onboard", "team building"}},
	{"funding", []string{"investment", "capital", "financing", "raise money"}},
	{"pivot", []string{"change direction", "adapt", "shift strategy"}},
	{"market", []string{"segment", "audience", "niche", "vertical"}},
	{"feedback", []string{"input", "response", "reaction", "criticism"}},
	{"idea", []string{"concept", "hypothesis", "vision", "proposal"}},
	{"problem", []string{"pain point", "challenge", "issue", "obstacle"}},
	{"revenue", []string{"income", "sales", "monetization", "earnings"}},
	{"competition", []string{"competitors", "rivals", "alternatives"}},
	{"two-sided market", []string{"marketplace", "platform", "network effects", "chicken and egg"}},
	{"b2b", []string{"enterprise", "business to business", "sales"}},
	{"d2c", []string{"direct to consumer", "ecommerce", "brand"}},
}

var (
	stopPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^how (do|can|should|would|to)\s+`),
		regexp.MustCompile(`(?i)^what (is|are|should|would)\s+`),
		regexp.MustCompile(`(?i)^why (do|does|is|are|should)\s+`),
		regexp.MustCompile(`(?i)^when (should|do|does|is)\s+`),
		regexp.MustCompile(`(?i)\bi\s+`),
		regexp.MustCompile(`(?i)\bmy\s+`),
		regexp.MustCompile(`(?i)\bwe\s+`),
		regexp.MustCompile(`(?i)\bour\s+`),
		regexp.MustCompile(`(?i)\bthe\s+`),
		regexp.MustCompile(`(?i)\ba\s+`),
		regexp.MustCompile(`(?i)\ban\s+`),
	}
	howPrefixRe  = regexp.MustCompile(`(?i)^how (do|can|should|would|to)\s+i?\s*`)
	whatPrefixRe = regexp.MustCompile(`(?i)^what (is|are|should|would)\s+(the\s+)?`)
	andSplitRe   = regexp.MustCompile(`(?i)\s+and\s+`)
)

// Expander turns one query into a small deduplicated ordered set of
// variations, always including the original query first.
type Expander struct {
	maxExpansions int
}

// New creates an Expander capped at maxExpansions variations.
func New(maxExpansions int) *Expander {
	if maxExpansions <= 0 {
		maxExpansions = 8
	}
	return &Expander{maxExpansions: maxExpansions}
}

// Expand returns the expansion set for query. Ordering beyond "original
// first" carries no meaning; callers must respect the cap.
func (e *Expander) Expand(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	add(query)
	add(expandWithSynonyms(query))
	add(extractKeyConcepts(query))
	for _, r := range reformulate(query) {
		add(r)
	}
	for _, s := range decompose(query) {
		add(s)
	}
	// Case-study variants surface real-world evidence the plain phrasing
	// often misses.
	add(query + " case study")
	add(query + " real world example")

	if len(out) > e.maxExpansions {
		out = out[:e.maxExpansions]
	}
	return out
}

// expandWithSynonyms appends the first synonym of the first matched
// vocabulary term.
func expandWithSynonyms(query string) string {
	expanded := strings.ToLower(query)
	for _, entry := range synonymMap {
		if strings.Contains(expanded, entry.term) {
			return strings.Replace(expanded, entry.term, entry.term+" "+entry.synonyms[0], 1)
		}
	}
	return expanded
}

// extractKeyConcepts strips interrogative scaffolding to surface the salient
// terms of the query.
func extractKeyConcepts(query string) string {
	concepts := strings.ToLower(query)
	for _, re := range stopPatterns {
		concepts = re.ReplaceAllString(concepts, "")
	}
	return strings.TrimSpace(concepts)
}

// reformulate produces alternative phrasings for how/what questions and
// injects domain context when absent.
func reformulate(query string) []string {
	var out []string
	lower := strings.ToLower(query)

	if strings.HasPrefix(lower, "how") {
		statement := howPrefixRe.ReplaceAllString(lower, "")
		if statement != lower {
			out = append(out, "best practices for "+statement)
		}
	}
	if strings.HasPrefix(lower, "what") {
		action := whatPrefixRe.ReplaceAllString(lower, "")
		if action != lower {
			out = append(out, action)
		}
	}
	if !strings.Contains(lower, "startup") && !strings.Contains(lower, "founder") {
		out = append(out, "startup "+query)
	}
	return out
}

// decompose breaks compound questions into simpler sub-queries.
func decompose(query string) []string {
	var out []string
	if strings.Contains(strings.ToLower(query), " and ") {
		for _, part := range andSplitRe.Split(query, -1) {
			part = strings.TrimSpace(part)
			if len(part) > 10 {
				out = append(out, part)
			}
		}
	}
	if strings.Count(query, "?") > 1 {
		parts := strings.Split(query, "?")
		for _, p := range parts[:len(parts)-1] {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p+"?")
			}
		}
	}
	return out
}
