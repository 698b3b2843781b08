// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doiurl rewrites DOI links in the url field of entries.
package doiurl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/bibsync/internal/httputil"
	"github.com/pdiddy/bibsync/internal/source"
	"github.com/pdiddy/bibsync/pkg/types"
)

// shortDOIBase is the shortDOI service endpoint. Declared as a var so tests
// can substitute an httptest server.
var shortDOIBase = "https://shortdoi.org"

// resolverBase is the canonical DOI resolver prefix.
const resolverBase = "https://doi.org/"

// ParseStyle validates a DOI URL style name.
func ParseStyle(s string) (types.DOIURLType, error) {
	switch st := types.DOIURLType(strings.ToLower(strings.TrimSpace(s))); st {
	case types.DOIURLUnchanged, types.DOIURLNew, types.DOIURLShort:
		return st, nil
	default:
		return "", fmt.Errorf("unknown DOI URL type %q (want unchanged, new or short)", s)
	}
}

// NewURL returns the https://doi.org form of a DOI link. It reports false
// when raw is not a DOI link.
func NewURL(raw string) (string, bool) {
	doi := source.NormalizeDOI(raw)
	if doi == "" || !strings.Contains(strings.ToLower(raw), "doi.org/") {
		return "", false
	}
	return resolverBase + doi, true
}

// Formatter applies a DOI URL style to entries.
type Formatter struct {
	Fetcher *httputil.Fetcher
	Timeout time.Duration
	Logger  *log.Logger
}

// Short asks the shortDOI service for the short form of doi and returns its
// resolver URL.
func (f *Formatter) Short(ctx context.Context, doi string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	body, err := f.Fetcher.Get(ctx, shortDOIBase+"/"+doi+"?format=json")
	if err != nil {
		return "", fmt.Errorf("shortDOI request: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("shortDOI response for %s is not JSON", doi)
	}
	short := gjson.GetBytes(body, "ShortDOI").String()
	if short == "" {
		return "", fmt.Errorf("shortDOI response for %s has no ShortDOI", doi)
	}
	return resolverBase + strings.TrimPrefix(short, "10/"), nil
}

// Apply rewrites the url field of every entry holding a DOI link and returns
// the number of entries changed. The short style falls back to the new style
// when the shortDOI service fails.
func (f *Formatter) Apply(ctx context.Context, entries map[string]types.Entry, style types.DOIURLType) int {
	if style == types.DOIURLUnchanged || style == "" {
		return 0
	}
	logger := f.Logger
	if logger == nil {
		logger = log.Default()
	}

	n := 0
	for k, e := range entries {
		raw := e.Value("url")
		newURL, ok := NewURL(raw)
		if !ok {
			continue
		}
		out := newURL
		if style == types.DOIURLShort && f.Fetcher != nil {
			short, err := f.Short(ctx, strings.TrimPrefix(newURL, resolverBase))
			if err != nil {
				logger.Warn("short DOI lookup failed, using long form", "key", k, "err", err)
			} else {
				out = short
			}
		}
		if out != raw {
			e.Set("url", out)
			entries[k] = e
			n++
		}
	}
	return n
}
