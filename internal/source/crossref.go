// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/bibsync/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

// crossrefRows is the number of search hits considered per title query.
const crossrefRows = 5

// CrossrefClient looks up entries in the Crossref DOI registry.
type CrossrefClient struct {
	cfg Config
}

// Kind returns Crossref.
func (c *CrossrefClient) Kind() Kind { return Crossref }

// Lookup matches entry against Crossref.
func (c *CrossrefClient) Lookup(ctx context.Context, entry types.Entry) types.Outcome {
	return lookup(ctx, c.cfg, c, entry)
}

func (c *CrossrefClient) byDOI(ctx context.Context, doi string) (*types.Record, error) {
	reqURL := crossrefAPIBase + "/" + escapeDOI(doi)
	if c.cfg.Mailto != "" {
		reqURL += "?" + url.Values{"mailto": {c.cfg.Mailto}}.Encode()
	}

	body, err := c.cfg.Fetcher.Get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("Crossref request: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed("Crossref returned invalid JSON")
	}
	msg := gjson.GetBytes(body, "message")
	if !msg.IsObject() {
		return nil, malformed("Crossref response has no message object")
	}
	rec := crossrefRecord(msg)
	if rec.Value("title") == "" {
		return nil, malformed("Crossref record for %s has no title", doi)
	}
	return rec, nil
}

func (c *CrossrefClient) byTitle(ctx context.Context, q query) ([]types.Record, error) {
	params := url.Values{
		"query.bibliographic": {q.Title},
		"rows":                {fmt.Sprintf("%d", crossrefRows)},
	}
	if q.Author != "" {
		params.Set("query.author", q.Author)
	}
	if c.cfg.Mailto != "" {
		params.Set("mailto", c.cfg.Mailto)
	}

	body, err := c.cfg.Fetcher.Get(ctx, crossrefAPIBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("Crossref request: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed("Crossref returned invalid JSON")
	}
	items := gjson.GetBytes(body, "message.items")
	if !items.Exists() {
		return nil, malformed("Crossref search response has no message.items")
	}

	var records []types.Record
	for _, item := range items.Array() {
		records = append(records, *crossrefRecord(item))
	}
	return records, nil
}

// crossrefRecord maps a Crossref work message onto BibTeX fields.
func crossrefRecord(msg gjson.Result) *types.Record {
	rec := newRecord()
	kind := msg.Get("type").String()
	rec.Type = crossrefEntryType(kind)

	set(rec, "title", msg.Get("title.0").String())

	var authors []string
	for _, a := range msg.Get("author").Array() {
		family := strings.TrimSpace(a.Get("family").String())
		given := strings.TrimSpace(a.Get("given").String())
		switch {
		case family != "" && given != "":
			authors = append(authors, family+", "+given)
		case family != "":
			authors = append(authors, family)
		case a.Get("name").String() != "":
			authors = append(authors, "{"+a.Get("name").String()+"}")
		}
	}
	set(rec, "author", strings.Join(authors, " and "))

	venueField := "journal"
	if rec.Type == "inproceedings" || rec.Type == "inbook" {
		venueField = "booktitle"
	}
	set(rec, venueField, msg.Get("container-title.0").String())

	for _, path := range []string{
		"published-print.date-parts.0.0",
		"published-online.date-parts.0.0",
		"issued.date-parts.0.0",
	} {
		if y := msg.Get(path).Int(); y > 0 {
			set(rec, "year", fmt.Sprintf("%d", y))
			break
		}
	}

	set(rec, "volume", msg.Get("volume").String())
	set(rec, "number", msg.Get("issue").String())
	set(rec, "pages", bibtexPages(msg.Get("page").String()))
	set(rec, "doi", msg.Get("DOI").String())
	set(rec, "publisher", msg.Get("publisher").String())
	set(rec, "issn", msg.Get("ISSN.0").String())
	return rec
}

// crossrefEntryType maps Crossref work types onto BibTeX entry types.
func crossrefEntryType(kind string) string {
	switch kind {
	case "journal-article":
		return "article"
	case "proceedings-article":
		return "inproceedings"
	case "book", "monograph", "edited-book", "reference-book":
		return "book"
	case "book-chapter", "book-section", "book-part":
		return "inbook"
	case "report":
		return "techreport"
	case "dissertation":
		return "phdthesis"
	case "posted-content":
		return "misc"
	default:
		return ""
	}
}

// escapeDOI path-escapes each segment of a DOI while keeping its slashes.
func escapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
