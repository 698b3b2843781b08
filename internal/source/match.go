package source

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/bibsync/pkg/types"
)

// SimilarityThreshold is the minimum normalized title similarity for a
// title/author search hit to count as a match.
const SimilarityThreshold = 0.9

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are stripped, case-insensitively, before a DOI is validated.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI strips URL and "doi:" prefixes and returns the bare DOI, or ""
// when s does not look like one.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range doiPrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	if !doiPattern.MatchString(s) {
		return ""
	}
	return s
}

// query is what a title search sends to a backend.
type query struct {
	Title  string
	Author string
}

// text joins title and author for backends with a single free-text parameter.
func (q query) text() string {
	if q.Author == "" {
		return q.Title
	}
	return q.Title + " " + q.Author
}

// buildQuery derives the search query from an entry. It reports false when
// the entry has no usable title.
func buildQuery(e types.Entry) (query, bool) {
	title := normalizeTitle(e.Value("title"))
	if title == "" {
		return query{}, false
	}
	return query{Title: title, Author: firstAuthorSurname(e.Value("author"))}, true
}

// normalizeTitle returns a lowercased version of title with punctuation,
// braces and LaTeX markup characters removed and whitespace collapsed.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity returns 1 - editDistance/maxLen over the normalized titles.
func similarity(a, b string) float64 {
	a, b = normalizeTitle(a), normalizeTitle(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// bestCandidate picks the candidate with the most similar title and accepts
// it only at or above SimilarityThreshold. Ties keep the backend's order.
func bestCandidate(title string, candidates []types.Record) (types.Record, bool) {
	bestIdx, bestScore := -1, 0.0
	for i, c := range candidates {
		s := similarity(title, c.Value("title"))
		if s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx < 0 || bestScore < SimilarityThreshold {
		return types.Record{}, false
	}
	best := candidates[bestIdx]
	best.Similarity = bestScore
	return best, true
}

// authorSplit separates BibTeX author lists on the "and" keyword.
var authorSplit = regexp.MustCompile(`(?i)\s+and\s+`)

// firstAuthorSurname extracts the family name of the first author from a
// BibTeX author field ("Last, First and ..." or "First Last and ...").
func firstAuthorSurname(authors string) string {
	authors = strings.NewReplacer("{", "", "}", "").Replace(strings.TrimSpace(authors))
	if authors == "" {
		return ""
	}
	first := authorSplit.Split(authors, 2)[0]
	if strings.EqualFold(first, "others") {
		return ""
	}
	if i := strings.Index(first, ","); i >= 0 {
		return strings.TrimSpace(first[:i])
	}
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// bibtexName converts "Given Family" into BibTeX "Family, Given". Single-token
// names are returned unchanged.
func bibtexName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return name
	}
	return name[idx+1:] + ", " + name[:idx]
}

// bibtexPages turns a page range "12-34" into the BibTeX form "12--34".
func bibtexPages(pages string) string {
	pages = strings.TrimSpace(pages)
	if pages == "" || strings.Contains(pages, "--") {
		return pages
	}
	return strings.Replace(pages, "-", "--", 1)
}

// newRecord returns a record with an initialized field map.
func newRecord() *types.Record {
	return &types.Record{Fields: make(map[string]string)}
}

// set stores non-empty, trimmed values only.
func set(rec *types.Record, name, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		rec.Fields[name] = value
	}
}
