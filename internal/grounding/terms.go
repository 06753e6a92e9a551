package grounding

import "strings"

// ExtractTerms pulls human-readable terms out of a grounding document.  Two
// shapes are recognized: a "codes" list whose entries carry "description"
// and a "concepts" list whose entries carry "display".  Terms keep first-seen
// order, are deduplicated ignoring case and truncated to MaxTerms.
func ExtractTerms(doc Document) []string {
	var terms []string
	terms = appendField(terms, doc["codes"], "description")
	terms = appendField(terms, doc["concepts"], "display")

	out := make([]string, 0, MaxTerms)
	seen := make(map[string]bool)
	for _, t := range terms {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == MaxTerms {
			break
		}
	}
	return out
}

func appendField(terms []string, list any, field string) []string {
	items, ok := list.([]any)
	if !ok {
		return terms
	}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s, ok := entry[field].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			terms = append(terms, s)
		}
	}
	return terms
}
