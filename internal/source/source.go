// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source looks up bibliographic entries against remote metadata
// backends (Crossref, DBLP, OpenAlex). Each backend is one implementation of
// Client selected by a closed Kind tag. A lookup issues exactly one outbound
// request and always returns a types.Outcome: network and protocol failures
// are reported as Failed outcomes, never as errors.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/bibsync/internal/httputil"
	"github.com/pdiddy/bibsync/pkg/types"
)

// Kind identifies a remote metadata source.
type Kind string

const (
	Crossref Kind = "crossref"
	DBLP     Kind = "dblp"
	OpenAlex Kind = "openalex"
)

// Kinds lists every supported source in display order.
var Kinds = []Kind{Crossref, DBLP, OpenAlex}

// DefaultTimeout is the per-lookup deadline when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrUnknownSource is returned for a source name outside Kinds.
var ErrUnknownSource = errors.New("unknown source")

// ParseKind validates a source name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownSource, name, kindList())
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Client looks up one entry against one backend. Implementations are safe for
// concurrent use; lookups share nothing but the Fetcher's rate and connection
// budget.
type Client interface {
	Kind() Kind
	Lookup(ctx context.Context, entry types.Entry) types.Outcome
}

// Config holds the settings shared by all source clients.
type Config struct {
	// Fetcher performs the HTTP request. Required.
	Fetcher *httputil.Fetcher

	// Timeout bounds each lookup (default 30s).
	Timeout time.Duration

	// Mailto is sent as the mailto parameter to sources with a polite pool.
	Mailto string

	// Logger receives per-lookup debug output (default log.Default()).
	Logger *log.Logger
}

// New returns the Client for kind.
func New(kind Kind, cfg Config) (Client, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("source %s: no fetcher configured", kind)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	switch kind {
	case Crossref:
		return &CrossrefClient{cfg: cfg}, nil
	case DBLP:
		return &DBLPClient{cfg: cfg}, nil
	case OpenAlex:
		return &OpenAlexClient{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, kind)
	}
}

// resolver is the per-backend half of a lookup: one request by DOI or one
// title/author search.
type resolver interface {
	byDOI(ctx context.Context, doi string) (*types.Record, error)
	byTitle(ctx context.Context, q query) ([]types.Record, error)
}

// lookup runs the shared matching strategy: exact DOI first, otherwise a
// title/author search accepted only above SimilarityThreshold. A doi field
// that is not a valid DOI is logged and ignored.
func lookup(ctx context.Context, cfg Config, r resolver, entry types.Entry) types.Outcome {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	raw := entry.Value("doi")
	doi := NormalizeDOI(raw)
	if raw != "" && doi == "" {
		cfg.Logger.Debug("ignoring invalid doi, searching by title", "key", entry.Key, "doi", raw)
	}
	if doi != "" {
		rec, err := r.byDOI(ctx, doi)
		if err != nil {
			return failure(err)
		}
		if rec == nil {
			return types.NoMatchOutcome()
		}
		rec.Basis = types.BasisDOI
		rec.Similarity = 1
		return types.MatchedOutcome(*rec)
	}

	q, ok := buildQuery(entry)
	if !ok {
		return types.NoMatchOutcome()
	}
	candidates, err := r.byTitle(ctx, q)
	if err != nil {
		return failure(err)
	}
	best, ok := bestCandidate(q.Title, candidates)
	if !ok {
		return types.NoMatchOutcome()
	}
	best.Basis = types.BasisTitle
	return types.MatchedOutcome(best)
}
