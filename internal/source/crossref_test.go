// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibsync/pkg/types"
)

const sampleCrossrefWork = `{
  "status": "ok",
  "message-type": "work",
  "message": {
    "DOI": "10.1038/nature14539",
    "type": "journal-article",
    "title": ["Deep learning"],
    "author": [
      {"given": "Yann", "family": "LeCun"},
      {"given": "Yoshua", "family": "Bengio"},
      {"given": "Geoffrey", "family": "Hinton"}
    ],
    "container-title": ["Nature"],
    "short-container-title": ["Nature"],
    "volume": "521",
    "issue": "7553",
    "page": "436-444",
    "publisher": "Springer Science and Business Media LLC",
    "ISSN": ["0028-0836", "1476-4687"],
    "published-print": {"date-parts": [[2015, 5, 28]]},
    "issued": {"date-parts": [[2015, 5, 27]]}
  }
}`

const sampleCrossrefSearch = `{
  "status": "ok",
  "message-type": "work-list",
  "message": {
    "items": [
      {
        "DOI": "10.1145/0000000.0000001",
        "type": "proceedings-article",
        "title": ["Attention is not all you need"],
        "container-title": ["Proceedings of Something"],
        "issued": {"date-parts": [[2021]]}
      },
      {
        "DOI": "10.5555/3295222.3295349",
        "type": "proceedings-article",
        "title": ["Attention is All you Need"],
        "author": [{"given": "Ashish", "family": "Vaswani"}],
        "container-title": ["Advances in Neural Information Processing Systems"],
        "issued": {"date-parts": [[2017]]}
      }
    ]
  }
}`

func TestCrossref_ByDOI(t *testing.T) {
	var gotPath, gotMailto string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMailto = r.URL.Query().Get("mailto")
		w.Write([]byte(sampleCrossrefWork))
	}))
	defer ts.Close()
	withBase(t, &crossrefAPIBase, ts.URL)

	cfg := testConfig(ts)
	cfg.Mailto = "me@example.org"
	c, err := New(Crossref, cfg)
	require.NoError(t, err)

	out := c.Lookup(context.Background(), entry(map[string]string{
		"title": "Deep Learning",
		"doi":   "https://doi.org/10.1038/nature14539",
	}))
	require.Equal(t, types.Matched, out.Kind)
	rec := out.Record

	assert.Equal(t, "/10.1038/nature14539", gotPath)
	assert.Equal(t, "me@example.org", gotMailto)
	assert.Equal(t, types.BasisDOI, rec.Basis)
	assert.Equal(t, "article", rec.Type)
	assert.Equal(t, "Deep learning", rec.Value("title"))
	assert.Equal(t, "LeCun, Yann and Bengio, Yoshua and Hinton, Geoffrey", rec.Value("author"))
	assert.Equal(t, "Nature", rec.Value("journal"))
	assert.Equal(t, "2015", rec.Value("year"))
	assert.Equal(t, "521", rec.Value("volume"))
	assert.Equal(t, "7553", rec.Value("number"))
	assert.Equal(t, "436--444", rec.Value("pages"))
	assert.Equal(t, "10.1038/nature14539", rec.Value("doi"))
	assert.Equal(t, "0028-0836", rec.Value("issn"))
}

func TestCrossref_ByTitle(t *testing.T) {
	var gotQuery, gotAuthor string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query.bibliographic")
		gotAuthor = r.URL.Query().Get("query.author")
		w.Write([]byte(sampleCrossrefSearch))
	}))
	defer ts.Close()
	withBase(t, &crossrefAPIBase, ts.URL)

	c, err := New(Crossref, testConfig(ts))
	require.NoError(t, err)

	out := c.Lookup(context.Background(), entry(map[string]string{
		"title":  "Attention Is All You Need",
		"author": "Vaswani, Ashish and Shazeer, Noam",
	}))
	require.Equal(t, types.Matched, out.Kind)

	assert.Equal(t, "attention is all you need", gotQuery)
	assert.Equal(t, "Vaswani", gotAuthor)
	assert.Equal(t, types.BasisTitle, out.Record.Basis)
	assert.Equal(t, "10.5555/3295222.3295349", out.Record.Value("doi"))
	assert.Equal(t, "inproceedings", out.Record.Type)
	assert.Equal(t, "Advances in Neural Information Processing Systems", out.Record.Value("booktitle"))
	assert.Empty(t, out.Record.Value("journal"))
}

func TestCrossref_InvalidDOIFallsBackToTitle(t *testing.T) {
	var gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query.bibliographic")
		w.Write([]byte(sampleCrossrefSearch))
	}))
	defer ts.Close()
	withBase(t, &crossrefAPIBase, ts.URL)

	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetLevel(log.DebugLevel)
	cfg := testConfig(ts)
	cfg.Logger = logger
	c, err := New(Crossref, cfg)
	require.NoError(t, err)

	out := c.Lookup(context.Background(), entry(map[string]string{
		"title": "Attention Is All You Need",
		"doi":   "10.12/abc",
	}))
	require.Equal(t, types.Matched, out.Kind)
	assert.Equal(t, types.BasisTitle, out.Record.Basis)
	assert.Equal(t, "/", gotPath, "no identifier request for an invalid DOI")
	assert.Equal(t, "attention is all you need", gotQuery)
	assert.Contains(t, logs.String(), "ignoring invalid doi")
	assert.Contains(t, logs.String(), "10.12/abc")
}

func TestCrossref_ByTitleBelowThreshold(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleCrossrefSearch))
	}))
	defer ts.Close()
	withBase(t, &crossrefAPIBase, ts.URL)

	c, err := New(Crossref, testConfig(ts))
	require.NoError(t, err)

	out := c.Lookup(context.Background(), entry(map[string]string{"title": "Graph neural networks for molecules"}))
	assert.Equal(t, types.NoMatch, out.Kind)
}

func TestCrossref_DOIRecordWithoutTitleIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"ok","message":{"DOI":"10.1000/x"}}`))
	}))
	defer ts.Close()
	withBase(t, &crossrefAPIBase, ts.URL)

	c, err := New(Crossref, testConfig(ts))
	require.NoError(t, err)

	out := c.Lookup(context.Background(), entry(map[string]string{"doi": "10.1000/x"}))
	assert.Equal(t, types.Failed, out.Kind)
	assert.Equal(t, types.FailureMalformedResponse, out.Failure)
	assert.True(t, strings.Contains(out.Err.Error(), "no title"))
}

func TestCrossrefEntryType(t *testing.T) {
	assert.Equal(t, "article", crossrefEntryType("journal-article"))
	assert.Equal(t, "inproceedings", crossrefEntryType("proceedings-article"))
	assert.Equal(t, "inbook", crossrefEntryType("book-chapter"))
	assert.Equal(t, "", crossrefEntryType("dataset"))
}

func TestEscapeDOI(t *testing.T) {
	assert.Equal(t, "10.1038/nature14539", escapeDOI("10.1038/nature14539"))
	assert.Equal(t, "10.1000/a/b", escapeDOI("10.1000/a/b"))
	assert.Equal(t, "10.1000/a%20b", escapeDOI("10.1000/a b"))
}
