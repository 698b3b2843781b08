// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/bibsync/pkg/types"
)

// dblpAPIBase is the DBLP publication search endpoint. Declared as a var so
// tests can substitute an httptest server.
var dblpAPIBase = "https://dblp.org/search/publ/api"

// dblpHits is the number of search hits considered per query.
const dblpHits = 5

// dblpHomonym matches the numeric disambiguation suffix DBLP appends to
// author names ("Jane Doe 0002").
var dblpHomonym = regexp.MustCompile(`\s+\d{4}$`)

// DBLPClient looks up entries in the DBLP computer science bibliography.
// DBLP has no identifier endpoint, so a DOI lookup searches for the DOI and
// accepts only a hit carrying that exact DOI.
type DBLPClient struct {
	cfg Config
}

// Kind returns DBLP.
func (c *DBLPClient) Kind() Kind { return DBLP }

// Lookup matches entry against DBLP.
func (c *DBLPClient) Lookup(ctx context.Context, entry types.Entry) types.Outcome {
	return lookup(ctx, c.cfg, c, entry)
}

func (c *DBLPClient) byDOI(ctx context.Context, doi string) (*types.Record, error) {
	hits, err := c.search(ctx, doi)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		if strings.EqualFold(h.Value("doi"), doi) {
			rec := h
			if rec.Value("title") == "" {
				return nil, malformed("DBLP hit for %s has no title", doi)
			}
			return &rec, nil
		}
	}
	return nil, nil
}

func (c *DBLPClient) byTitle(ctx context.Context, q query) ([]types.Record, error) {
	return c.search(ctx, q.text())
}

func (c *DBLPClient) search(ctx context.Context, text string) ([]types.Record, error) {
	params := url.Values{
		"q":      {text},
		"format": {"json"},
		"h":      {fmt.Sprintf("%d", dblpHits)},
	}

	body, err := c.cfg.Fetcher.Get(ctx, dblpAPIBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("DBLP request: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed("DBLP returned invalid JSON")
	}
	hits := gjson.GetBytes(body, "result.hits")
	if !hits.Exists() {
		return nil, malformed("DBLP response has no result.hits")
	}

	var records []types.Record
	for _, hit := range hits.Get("hit").Array() {
		records = append(records, *dblpRecord(hit.Get("info")))
	}
	return records, nil
}

// dblpRecord maps a DBLP hit's info object onto BibTeX fields. DBLP encodes
// single-element lists as bare objects; gjson's Array() covers both shapes.
func dblpRecord(info gjson.Result) *types.Record {
	rec := newRecord()
	rec.Type = dblpEntryType(info.Get("type").String())

	set(rec, "title", strings.TrimSuffix(strings.TrimSpace(info.Get("title").String()), "."))

	var authors []string
	for _, a := range info.Get("authors.author").Array() {
		name := a.Get("text").String()
		if name == "" {
			name = a.String()
		}
		name = dblpHomonym.ReplaceAllString(strings.TrimSpace(name), "")
		if name != "" {
			authors = append(authors, bibtexName(name))
		}
	}
	set(rec, "author", strings.Join(authors, " and "))

	venueField := "journal"
	if rec.Type == "inproceedings" {
		venueField = "booktitle"
	}
	if venues := info.Get("venue").Array(); len(venues) > 0 {
		set(rec, venueField, venues[0].String())
	}

	set(rec, "year", info.Get("year").String())
	set(rec, "volume", info.Get("volume").String())
	set(rec, "number", info.Get("number").String())
	set(rec, "pages", bibtexPages(info.Get("pages").String()))
	set(rec, "doi", info.Get("doi").String())
	return rec
}

// dblpEntryType maps DBLP publication types onto BibTeX entry types.
func dblpEntryType(kind string) string {
	switch kind {
	case "Journal Articles":
		return "article"
	case "Conference and Workshop Papers":
		return "inproceedings"
	case "Books and Theses":
		return "book"
	case "Parts in Books or Collections":
		return "incollection"
	case "Informal and Other Publications", "Informal Publications":
		return "misc"
	default:
		return ""
	}
}
