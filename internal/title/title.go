// Package title cleans up BibTeX titles after synchronization.
package title

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/bibsync/pkg/types"
)

// Sanitize collapses whitespace, drops a single trailing period and wraps
// words with inner capitals (acronyms, "iPhone") in braces so BibTeX styles
// keep their case. Words already carrying braces or TeX markup are left alone.
func Sanitize(t string) string {
	words := strings.Fields(t)
	for i, w := range words {
		words[i] = protect(w)
	}
	t = strings.Join(words, " ")
	if strings.HasSuffix(t, ".") && !strings.HasSuffix(t, "..") {
		t = strings.TrimSuffix(t, ".")
	}
	return t
}

func protect(w string) string {
	if strings.ContainsAny(w, `{}$\`) {
		return w
	}
	start := strings.IndexFunc(w, isWordRune)
	end := strings.LastIndexFunc(w, isWordRune)
	if start < 0 {
		return w
	}
	_, size := utf8.DecodeRuneInString(w[end:])
	end += size
	for end < len(w) && (w[end] == '+' || w[end] == '#') {
		end++
	}
	core := w[start:end]
	if !innerCapital(core) {
		return w
	}
	return w[:start] + "{" + core + "}" + w[end:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// innerCapital reports whether an upper-case letter appears after the first
// rune of w.
func innerCapital(w string) bool {
	for i, r := range w {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Apply sanitizes the title of every entry and returns the number of
// entries changed.
func Apply(entries map[string]types.Entry) int {
	n := 0
	for k, e := range entries {
		t := e.Value("title")
		if t == "" {
			continue
		}
		if s := Sanitize(t); s != t {
			e.Set("title", s)
			entries[k] = e
			n++
		}
	}
	return n
}
