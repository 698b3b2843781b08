// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex reads BibTeX files into entries and writes entries back out
// in a normalized layout.
package bibtex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	nbib "github.com/nickng/bibtex"

	"github.com/pdiddy/bibsync/pkg/types"
)

// Document is a parsed BibTeX file.
type Document struct {
	// Order lists citation keys in file order.
	Order []string

	// Entries maps citation keys to entries.
	Entries map[string]types.Entry

	// Duplicates lists keys that appeared more than once. The first
	// occurrence wins.
	Duplicates []string
}

// Parse reads BibTeX from r. Field values built from @string macros, month
// abbreviations or "#" concatenations are expanded to their full text.
func Parse(r io.Reader) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading BibTeX: %w", err)
	}
	expanded, err := expandValues(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing BibTeX: %w", err)
	}

	bib, err := nbib.Parse(strings.NewReader(expanded))
	if err != nil {
		return nil, fmt.Errorf("parsing BibTeX: %w", err)
	}

	doc := &Document{Entries: make(map[string]types.Entry, len(bib.Entries))}
	for _, be := range bib.Entries {
		if be == nil {
			continue
		}
		if _, dup := doc.Entries[be.CiteName]; dup {
			doc.Duplicates = append(doc.Duplicates, be.CiteName)
			continue
		}
		fields := make(map[string]string, len(be.Fields))
		for name, v := range be.Fields {
			if v == nil {
				continue
			}
			fields[name] = strings.TrimSpace(v.String())
		}
		doc.Entries[be.CiteName] = types.NewEntry(be.CiteName, be.Type, fields)
		doc.Order = append(doc.Order, be.CiteName)
	}
	return doc, nil
}

// Update replaces the document's entries with the given ones. Keys not
// already present are appended to Order in sorted order.
func (d *Document) Update(entries map[string]types.Entry) {
	if d.Entries == nil {
		d.Entries = make(map[string]types.Entry, len(entries))
	}
	var added []string
	for k, e := range entries {
		if _, ok := d.Entries[k]; !ok {
			added = append(added, k)
		}
		d.Entries[k] = e
	}
	sort.Strings(added)
	d.Order = append(d.Order, added...)
}

// Keys returns the citation keys in output order.
func (d *Document) Keys(sortByKey bool) []string {
	keys := append([]string(nil), d.Order...)
	if sortByKey {
		sort.Strings(keys)
	}
	return keys
}

// Format controls the output layout.
type Format struct {
	Delimiter types.DelimiterType
	TabIndent bool
	SortByKey bool
}

// FormatFromConfig converts the output configuration into a Format.
func FormatFromConfig(cfg types.OutputConfig) Format {
	return Format{Delimiter: cfg.Delimiter, TabIndent: cfg.TabIndent, SortByKey: cfg.SortByKey}
}

// canonicalFields are written first, in this order. Remaining fields follow
// alphabetically.
var canonicalFields = []string{
	"author", "editor", "title", "booktitle", "journal", "series",
	"year", "month", "volume", "number", "pages", "publisher",
	"address", "edition", "school", "institution", "organization",
	"doi", "url", "issn", "isbn",
}

var canonicalRank = func() map[string]int {
	m := make(map[string]int, len(canonicalFields))
	for i, f := range canonicalFields {
		m[f] = i
	}
	return m
}()

// orderedFields returns e's field names in output order.
func orderedFields(e types.Entry) []string {
	names := e.FieldNames()
	sort.SliceStable(names, func(i, j int) bool {
		ri, iok := canonicalRank[names[i]]
		rj, jok := canonicalRank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// Write renders the document to w.
func Write(w io.Writer, d *Document, f Format) error {
	bw := bufio.NewWriter(w)
	indent := "  "
	if f.TabIndent {
		indent = "\t"
	}

	for i, key := range d.Keys(f.SortByKey) {
		e, ok := d.Entries[key]
		if !ok {
			continue
		}
		if i > 0 {
			bw.WriteString("\n")
		}
		entryType := e.Type
		if entryType == "" {
			entryType = "misc"
		}
		fmt.Fprintf(bw, "@%s{%s,\n", entryType, key)
		names := orderedFields(e)
		for j, name := range names {
			sep := ","
			if j == len(names)-1 {
				sep = ""
			}
			fmt.Fprintf(bw, "%s%s = %s%s\n", indent, name, delimit(e.Fields[name], f.Delimiter), sep)
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}

// delimit wraps v in the requested delimiters. Values containing a double
// quote are always braced.
func delimit(v string, d types.DelimiterType) string {
	if d == types.DelimiterQuotes && !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	return "{" + v + "}"
}
