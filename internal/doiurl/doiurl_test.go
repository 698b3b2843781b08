// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doiurl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibsync/internal/httputil"
	"github.com/pdiddy/bibsync/pkg/types"
)

func withShortDOIBase(t *testing.T, url string) {
	t.Helper()
	old := shortDOIBase
	shortDOIBase = url
	t.Cleanup(func() { shortDOIBase = old })
}

func testFormatter(ts *httptest.Server) *Formatter {
	return &Formatter{
		Fetcher: &httputil.Fetcher{Client: ts.Client(), UserAgent: "bibsync/test"},
		Timeout: time.Second,
		Logger:  log.New(io.Discard),
	}
}

func TestParseStyle(t *testing.T) {
	for _, s := range []string{"unchanged", "new", "SHORT"} {
		_, err := ParseStyle(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseStyle("long")
	assert.Error(t, err)
}

func TestNewURL(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"http://dx.doi.org/10.1038/nature14539", "https://doi.org/10.1038/nature14539", true},
		{"https://doi.org/10.1038/nature14539", "https://doi.org/10.1038/nature14539", true},
		{"https://example.org/paper.pdf", "", false},
		{"10.1038/nature14539", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NewURL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NewURL(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestApply_New(t *testing.T) {
	entries := map[string]types.Entry{
		"a": types.NewEntry("a", "article", map[string]string{"url": "http://dx.doi.org/10.1038/nature14539"}),
		"b": types.NewEntry("b", "article", map[string]string{"url": "https://example.org/x"}),
		"c": types.NewEntry("c", "article", map[string]string{"url": "https://doi.org/10.1000/y"}),
	}

	n := (&Formatter{}).Apply(context.Background(), entries, types.DOIURLNew)

	assert.Equal(t, 1, n)
	assert.Equal(t, "https://doi.org/10.1038/nature14539", entries["a"].Value("url"))
	assert.Equal(t, "https://example.org/x", entries["b"].Value("url"))
}

func TestApply_Unchanged(t *testing.T) {
	entries := map[string]types.Entry{
		"a": types.NewEntry("a", "article", map[string]string{"url": "http://dx.doi.org/10.1038/nature14539"}),
	}
	assert.Equal(t, 0, (&Formatter{}).Apply(context.Background(), entries, types.DOIURLUnchanged))
	assert.Equal(t, "http://dx.doi.org/10.1038/nature14539", entries["a"].Value("url"))
}

func TestApply_Short(t *testing.T) {
	var gotPath, gotFormat string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		w.Write([]byte(`{"DOI":"10.1038/nature14539","ShortDOI":"10/bmqp","IsNew":false}`))
	}))
	defer ts.Close()
	withShortDOIBase(t, ts.URL)

	entries := map[string]types.Entry{
		"a": types.NewEntry("a", "article", map[string]string{"url": "http://dx.doi.org/10.1038/nature14539"}),
	}
	n := testFormatter(ts).Apply(context.Background(), entries, types.DOIURLShort)

	assert.Equal(t, 1, n)
	assert.Equal(t, "/10.1038/nature14539", gotPath)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "https://doi.org/bmqp", entries["a"].Value("url"))
}

func TestApply_ShortFallsBackToNew(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()
	withShortDOIBase(t, ts.URL)

	entries := map[string]types.Entry{
		"a": types.NewEntry("a", "article", map[string]string{"url": "http://dx.doi.org/10.1038/nature14539"}),
	}
	testFormatter(ts).Apply(context.Background(), entries, types.DOIURLShort)

	assert.Equal(t, "https://doi.org/10.1038/nature14539", entries["a"].Value("url"))
}

func TestShort_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"DOI":"10.1/x"}`))
	}))
	defer ts.Close()
	withShortDOIBase(t, ts.URL)

	_, err := testFormatter(ts).Short(context.Background(), "10.1/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ShortDOI")
}
