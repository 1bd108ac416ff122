package geo

import (
	"strings"

	"github.com/timmy/jobimport/internal/domain"
)

type categoryEntry struct {
	id       int64
	name     string
	forms    []string
	loose    []string
	keywords [][]string
	excludes [][]string
}

// CategoryIndex resolves source categories and job titles to canonical
// categories.
type CategoryIndex struct {
	entries []categoryEntry
	pos     map[int64]int
	ids     IDMap
}

// NewCategoryIndex builds a CategoryIndex. Categories are scanned in the
// order given.
func NewCategoryIndex(categories []domain.Category, ids IDMap) *CategoryIndex {
	idx := &CategoryIndex{
		entries: make([]categoryEntry, 0, len(categories)),
		pos:     make(map[int64]int, len(categories)),
		ids:     ids,
	}
	for _, c := range categories {
		e := categoryEntry{id: c.ID, name: strings.TrimSpace(c.NameUz)}
		for _, n := range []string{c.NameUz, c.NameRu} {
			if f := NormalizeText(n); f != "" {
				e.forms = append(e.forms, f)
				if l := LooseCategoryName(f); l != "" {
					e.loose = append(e.loose, l)
				}
			}
		}
		e.keywords = phrases(c.Keywords)
		e.excludes = phrases(c.ExcludeKeywords)
		idx.pos[c.ID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}
	return idx
}

func phrases(words []string) [][]string {
	out := make([][]string, 0, len(words))
	for _, w := range words {
		if toks := strings.Fields(NormalizeText(w)); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// Resolve maps a source category to a canonical one. Order: id map, then
// category name (exact, containment, loose), then keywords found in title.
// Returns nil when none match.
func (idx *CategoryIndex) Resolve(source, externalID, name, title string) *Match {
	if id, ok := idx.ids.Lookup(source, domain.MappingKindCategory, externalID); ok {
		if pos, ok := idx.pos[id]; ok {
			e := idx.entries[pos]
			return &Match{ID: e.id, Name: e.name, Method: MatchByID}
		}
	}

	if f := NormalizeText(name); f != "" {
		for _, e := range idx.entries {
			for _, ef := range e.forms {
				if ef == f {
					return &Match{ID: e.id, Name: e.name, Method: MatchExact}
				}
			}
		}
		for _, e := range idx.entries {
			for _, ef := range e.forms {
				if contains(ef, f) {
					return &Match{ID: e.id, Name: e.name, Method: MatchContains}
				}
			}
		}
		if l := LooseCategoryName(f); l != "" {
			for _, e := range idx.entries {
				for _, el := range e.loose {
					if el == l {
						return &Match{ID: e.id, Name: e.name, Method: MatchLoose}
					}
				}
			}
		}
	}

	return idx.ByKeywords(title)
}

// ByKeywords returns the first category with a keyword in title and no
// exclude keyword in title.
func (idx *CategoryIndex) ByKeywords(title string) *Match {
	tokens := strings.Fields(NormalizeText(title))
	if len(tokens) == 0 {
		return nil
	}
	for _, e := range idx.entries {
		if !anyPhrase(tokens, e.keywords) || anyPhrase(tokens, e.excludes) {
			continue
		}
		return &Match{ID: e.id, Name: e.name, Method: MatchByKeywords}
	}
	return nil
}

// anyPhrase reports whether one of the phrases occurs in tokens. A phrase
// token matches a title token by prefix so that inflected forms count.
func anyPhrase(tokens []string, list [][]string) bool {
	for _, p := range list {
		for i := 0; i+len(p) <= len(tokens); i++ {
			ok := true
			for j, w := range p {
				if !strings.HasPrefix(tokens[i+j], w) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
	}
	return false
}
