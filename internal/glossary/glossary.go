// Package glossary builds a fast matcher over a project's terminology list
// so that each translation request carries only the terms that actually
// occur in the text being translated. Sending the full glossary with every
// request wastes prompt budget and dilutes model attention once a project
// accumulates hundreds of entries.
package glossary

import (
	"regexp"
	"sort"
	"strings"
)

// Entry is one fixed source→target term mapping. Original is unique within
// a glossary, compared case-insensitively.
type Entry struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// Index is a case-insensitive matcher over a glossary. The zero value (and
// an index built from an empty glossary) matches nothing at no cost.
type Index struct {
	entries map[string]Entry
	pattern *regexp.Regexp
}

// NewIndex builds an index from entries. Duplicate originals (compared
// case-insensitively) keep the first occurrence. The combined pattern lists
// originals longest-first so that overlapping terms resolve to the most
// specific one: "Frozen Cloud Asgard" must win over "Cloud" inside the same
// span.
func NewIndex(entries []Entry) *Index {
	idx := &Index{}
	if len(entries) == 0 {
		return idx
	}

	idx.entries = make(map[string]Entry, len(entries))
	originals := make([]string, 0, len(entries))
	for _, e := range entries {
		original := strings.TrimSpace(e.Original)
		if original == "" {
			continue
		}
		key := strings.ToLower(original)
		if _, dup := idx.entries[key]; dup {
			continue
		}
		idx.entries[key] = Entry{Original: original, Translated: e.Translated}
		originals = append(originals, original)
	}
	if len(originals) == 0 {
		return idx
	}

	// Go's regexp engine tries alternatives in pattern order, so the sort
	// is what enforces longest-term precedence.
	sort.SliceStable(originals, func(i, j int) bool {
		return len([]rune(originals[i])) > len([]rune(originals[j]))
	})

	quoted := make([]string, len(originals))
	for i, o := range originals {
		quoted[i] = regexp.QuoteMeta(o)
	}
	idx.pattern = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))

	return idx
}

// Len reports the number of indexed terms.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Relevant returns the glossary entries whose original form occurs in text,
// deduplicated, in order of first occurrence. A nil or empty index returns
// nil.
func (ix *Index) Relevant(text string) []Entry {
	if ix == nil || ix.pattern == nil {
		return nil
	}

	matches := ix.pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var hits []Entry
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		if e, ok := ix.entries[key]; ok {
			hits = append(hits, e)
		}
	}
	return hits
}
