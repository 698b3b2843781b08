// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/bibsync/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

// openAlexPerPage is the number of search hits considered per title query.
const openAlexPerPage = 5

// OpenAlexClient looks up entries in the OpenAlex works index.
type OpenAlexClient struct {
	cfg Config
}

// Kind returns OpenAlex.
func (c *OpenAlexClient) Kind() Kind { return OpenAlex }

// Lookup matches entry against OpenAlex.
func (c *OpenAlexClient) Lookup(ctx context.Context, entry types.Entry) types.Outcome {
	return lookup(ctx, c.cfg, c, entry)
}

func (c *OpenAlexClient) byDOI(ctx context.Context, doi string) (*types.Record, error) {
	reqURL := openAlexAPIBase + "/https://doi.org/" + escapeDOI(doi)
	if c.cfg.Mailto != "" {
		reqURL += "?" + url.Values{"mailto": {c.cfg.Mailto}}.Encode()
	}

	body, err := c.cfg.Fetcher.Get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex request: %w", err)
	}

	var work openAlexWork
	if err := json.Unmarshal(body, &work); err != nil {
		return nil, malformed("parsing OpenAlex work: %v", err)
	}
	rec := work.record()
	if rec.Value("title") == "" {
		return nil, malformed("OpenAlex work for %s has no title", doi)
	}
	return rec, nil
}

func (c *OpenAlexClient) byTitle(ctx context.Context, q query) ([]types.Record, error) {
	params := url.Values{
		"search":   {q.text()},
		"per_page": {fmt.Sprintf("%d", openAlexPerPage)},
	}
	if c.cfg.Mailto != "" {
		params.Set("mailto", c.cfg.Mailto)
	}

	body, err := c.cfg.Fetcher.Get(ctx, openAlexAPIBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("OpenAlex request: %w", err)
	}

	var oar openAlexResponse
	if err := json.Unmarshal(body, &oar); err != nil {
		return nil, malformed("parsing OpenAlex response: %v", err)
	}
	if oar.Results == nil {
		return nil, malformed("OpenAlex response has no results")
	}

	records := make([]types.Record, 0, len(oar.Results))
	for _, w := range oar.Results {
		records = append(records, *w.record())
	}
	return records, nil
}

// record maps an OpenAlex work onto BibTeX fields.
func (w openAlexWork) record() *types.Record {
	rec := newRecord()

	src := w.PrimaryLocation.Source
	rec.Type = openAlexEntryType(w.Type, src.Type)

	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	set(rec, "title", title)

	var authors []string
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, bibtexName(a.Author.DisplayName))
		}
	}
	set(rec, "author", strings.Join(authors, " and "))

	venueField := "journal"
	if rec.Type == "inproceedings" {
		venueField = "booktitle"
	}
	set(rec, venueField, src.DisplayName)

	if w.PublicationYear > 0 {
		set(rec, "year", fmt.Sprintf("%d", w.PublicationYear))
	}
	set(rec, "volume", w.Biblio.Volume)
	set(rec, "number", w.Biblio.Issue)
	switch {
	case w.Biblio.FirstPage != "" && w.Biblio.LastPage != "" && w.Biblio.FirstPage != w.Biblio.LastPage:
		set(rec, "pages", w.Biblio.FirstPage+"--"+w.Biblio.LastPage)
	default:
		set(rec, "pages", w.Biblio.FirstPage)
	}
	// OpenAlex reports DOIs as URLs; strip the resolver prefix.
	set(rec, "doi", NormalizeDOI(w.DOI))
	set(rec, "issn", src.ISSNL)
	return rec
}

// openAlexEntryType maps an OpenAlex work type and its host source type onto
// a BibTeX entry type.
func openAlexEntryType(workType, sourceType string) string {
	if sourceType == "conference" {
		return "inproceedings"
	}
	switch workType {
	case "article", "review", "letter", "editorial":
		return "article"
	case "book":
		return "book"
	case "book-chapter":
		return "inbook"
	case "dissertation":
		return "phdthesis"
	case "report":
		return "techreport"
	case "preprint":
		return "misc"
	default:
		return ""
	}
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID              string               `json:"id"`
	DOI             string               `json:"doi"`
	Title           string               `json:"title"`
	DisplayName     string               `json:"display_name"`
	Type            string               `json:"type"`
	PublicationYear int                  `json:"publication_year"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	PrimaryLocation openAlexLocation     `json:"primary_location"`
	Biblio          openAlexBiblio       `json:"biblio"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	ISSNL       string `json:"issn_l"`
}

type openAlexBiblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}
