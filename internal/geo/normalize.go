// Package geo maps free-text location and category names coming from job
// sources onto canonical region, district and category ids.
package geo

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var apostrophes = strings.NewReplacer(
	"ʻ", "'", "ʼ", "'", "’", "'", "‘", "'", "`", "'", "´", "'", "ʹ", "'", "′", "'",
)

var (
	compiledFixes   = compileTable(Fixes)
	compiledAliases = compileTable(Aliases)
	typeTokenSet    = compileTokenSet(typeTokens)
	fillerTokenSet  = compileTokenSet(categoryFillerTokens)
)

// NormalizeGeoName lowercases raw, expands abbreviations, folds apostrophes
// and diacritics, collapses punctuation and applies the Fixes and Aliases
// tables in that order.
func NormalizeGeoName(raw string) string {
	s := NormalizeText(raw)
	if s == "" {
		return ""
	}
	s = applyTable(s, compiledFixes)
	return applyTable(s, compiledAliases)
}

// StripGeoTypeTokens drops standalone administrative-unit words from an
// already normalized name.
func StripGeoTypeTokens(normalized string) string {
	tokens := strings.Fields(normalized)
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := typeTokenSet[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// LooseGeoName is StripGeoTypeTokens(NormalizeGeoName(raw)).
func LooseGeoName(raw string) string {
	return StripGeoTypeTokens(NormalizeGeoName(raw))
}

// LooseCategoryName drops connector words from a normalized category name
// and sorts what is left, so token order does not matter.
func LooseCategoryName(normalized string) string {
	tokens := strings.Fields(normalized)
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := fillerTokenSet[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

// NormalizeText performs the table-free part of NormalizeGeoName. It is
// also used for category names and job titles.
func NormalizeText(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = apostrophes.Replace(s)
	s = stripDiacritics(s)
	s = expandAbbreviations(s)
	return collapse(s)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func expandAbbreviations(s string) string {
	tokens := strings.Fields(strings.ReplaceAll(s, ".", ". "))
	for i, tok := range tokens {
		if full, ok := abbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// collapse turns every run of characters other than letters, digits and
// in-word apostrophes into a single space.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		tokens[i] = strings.TrimLeft(tok, "'")
	}
	return strings.Join(strings.Fields(strings.Join(tokens, " ")), " ")
}

type compiledSubstitution struct {
	from []string
	to   []string
}

func compileTable(table []Substitution) []compiledSubstitution {
	out := make([]compiledSubstitution, 0, len(table))
	for _, sub := range table {
		from := strings.Fields(NormalizeText(sub.From))
		if len(from) == 0 {
			continue
		}
		out = append(out, compiledSubstitution{
			from: from,
			to:   strings.Fields(NormalizeText(sub.To)),
		})
	}
	return out
}

func compileTokenSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[NormalizeText(w)] = struct{}{}
	}
	return set
}

// applyTable replaces whole-token phrases left to right. Replacement
// output is never rescanned by the same entry.
func applyTable(s string, table []compiledSubstitution) string {
	tokens := strings.Fields(s)
	for _, sub := range table {
		tokens = replacePhrase(tokens, sub.from, sub.to)
	}
	return strings.Join(tokens, " ")
}

func replacePhrase(tokens, from, to []string) []string {
	if len(tokens) < len(from) {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if i+len(from) <= len(tokens) && equalTokens(tokens[i:i+len(from)], from) {
			out = append(out, to...)
			i += len(from)
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
