// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine synchronizes a set of bibliographic entries against one
// remote source. It dispatches bounded concurrent lookups, merges every
// matched record into its local entry and passes unmatched or failed entries
// through unchanged.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/bibsync/internal/merge"
	"github.com/pdiddy/bibsync/internal/source"
	"github.com/pdiddy/bibsync/pkg/types"
)

// DefaultConcurrency is the lookup concurrency used by the CLI.
const DefaultConcurrency = 10

// Observer receives one call per lookup attempt.
type Observer interface {
	ObserveLookup(source string, out types.Outcome, d time.Duration)
}

// Options are the per-run settings threaded through Synchronize.
type Options struct {
	// Concurrency caps the number of lookups in flight. Values below one
	// mean one.
	Concurrency int

	// PreferLongJournalNames resolves journal conflicts toward the longer name.
	PreferLongJournalNames bool

	// Retries is the number of extra attempts for transient failures.
	// Zero means every entry gets exactly one lookup.
	Retries int
}

// Engine holds the registered source clients.
type Engine struct {
	clients  map[source.Kind]source.Client
	logger   *log.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-entry diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers an observer for lookup attempts.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New returns an engine serving the given clients. A later client with the
// same kind replaces an earlier one.
func New(clients []source.Client, opts ...Option) *Engine {
	e := &Engine{
		clients: make(map[source.Kind]source.Client, len(clients)),
		logger:  log.Default(),
	}
	for _, c := range clients {
		e.clients[c.Kind()] = c
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synchronize looks up every entry in the source named by kind and returns
// one result per input identifier. Per-entry failures are reported in the
// results; the returned error is non-nil only when kind is not registered,
// in which case no lookup is dispatched.
func (e *Engine) Synchronize(ctx context.Context, entries map[string]types.Entry, kind source.Kind, opts Options) (types.SyncResults, error) {
	client, ok := e.clients[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not configured", source.ErrUnknownSource, kind)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lookup := func(ctx context.Context, key string) types.Outcome {
		start := time.Now()
		out := client.Lookup(ctx, entries[key].Clone())
		if e.observer != nil {
			e.observer.ObserveLookup(string(kind), out, time.Since(start))
		}
		return out
	}

	e.logger.Info("synchronizing", "entries", len(keys), "source", kind, "concurrency", opts.Concurrency)
	outcomes := Run(ctx, keys, opts.Concurrency, withRetry(lookup, opts.Retries, e.logger))

	policy := merge.Policy{PreferLongJournalNames: opts.PreferLongJournalNames}
	results := make(types.SyncResults, len(keys))
	for _, key := range keys {
		local := entries[key].Clone()
		local.Key = key
		out := outcomes[key]

		res := types.SyncResult{Entry: local, Outcome: out}
		if out.Kind == types.Matched && out.Record != nil {
			res.Entry, res.Changed = merge.Merge(local, *out.Record, policy)
		}
		results[key] = res

		l := e.logger.With("key", key, "outcome", out)
		switch out.Kind {
		case types.Matched:
			l.Debug("entry merged", "changed", res.Changed)
		case types.Failed:
			l.Warn("lookup failed", "err", out.Err)
		default:
			l.Debug("entry unchanged")
		}
	}

	e.logger.Info("synchronization done", "summary", results.Summary().String())
	return results, nil
}
