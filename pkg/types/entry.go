// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for bibsync: bibliographic
// entries, remote records, lookup outcomes and per-entry sync results.
package types

import (
	"sort"
	"strings"
)

// Entry is one bibliographic record keyed by its BibTeX citation key.
// Field names are case-insensitive and stored lowercase.
type Entry struct {
	// Key is the BibTeX citation key. It is never modified by synchronization.
	Key string `json:"key" yaml:"key"`

	// Type is the BibTeX entry type without the leading "@" (e.g. "article").
	Type string `json:"type" yaml:"type"`

	// Fields maps lowercase field names to values.
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// NewEntry returns an entry with the given key, type and fields. Field names
// are lowercased; empty values are dropped.
func NewEntry(key, entryType string, fields map[string]string) Entry {
	e := Entry{
		Key:    key,
		Type:   strings.ToLower(entryType),
		Fields: make(map[string]string, len(fields)),
	}
	for k, v := range fields {
		e.Set(k, v)
	}
	return e
}

// Get returns the value of field name and whether it is present.
func (e Entry) Get(name string) (string, bool) {
	v, ok := e.Fields[strings.ToLower(name)]
	return v, ok
}

// Value returns the value of field name or "" when absent.
func (e Entry) Value(name string) string {
	return e.Fields[strings.ToLower(name)]
}

// Set stores value under the lowercase field name. An empty value removes
// the field.
func (e *Entry) Set(name, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if value == "" {
		delete(e.Fields, name)
		return
	}
	e.Fields[name] = value
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	c := Entry{Key: e.Key, Type: e.Type, Fields: make(map[string]string, len(e.Fields))}
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	return c
}

// FieldNames returns the entry's field names in sorted order.
func (e Entry) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MatchBasis tells how a remote record was matched to a local entry.
type MatchBasis string

const (
	// BasisDOI marks an exact match through the entry's DOI (high confidence).
	BasisDOI MatchBasis = "doi"
	// BasisTitle marks a fuzzy title/author match above the similarity threshold.
	BasisTitle MatchBasis = "title"
)

// Record is a candidate bibliographic record returned by a remote source.
// It exists only for the duration of one lookup.
type Record struct {
	// Fields has the same shape as Entry.Fields.
	Fields map[string]string `json:"fields" yaml:"fields"`

	// Type is the BibTeX entry type derived from the source's publication type.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Basis tells whether the record was matched by DOI or by title search.
	Basis MatchBasis `json:"basis" yaml:"basis"`

	// Similarity is the normalized title similarity for title matches (1.0 for DOI matches).
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// Value returns the value of field name or "" when absent.
func (r Record) Value(name string) string {
	return r.Fields[strings.ToLower(name)]
}
