// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/bibsync/pkg/types"
)

// LookupFunc performs the lookup for one identifier. It must report every
// fault through the returned outcome.
type LookupFunc func(ctx context.Context, key string) types.Outcome

// Run calls lookup for every key with at most limit calls in flight and
// returns one outcome per key. Keys are dispatched in slice order. A limit
// below one is treated as one.
//
// Cancelling ctx stops dispatch. Keys never dispatched, and keys whose
// lookup failed because ctx was cancelled, are reported as NotAttempted.
func Run(ctx context.Context, keys []string, limit int, lookup LookupFunc) map[string]types.Outcome {
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	results := make(map[string]types.Outcome, len(keys))

	p := pool.New().WithMaxGoroutines(limit)
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		// Go blocks until a worker is free.
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			out := lookup(ctx, key)
			if out.Kind == types.Failed && ctx.Err() != nil {
				return
			}
			mu.Lock()
			results[key] = out
			mu.Unlock()
		})
	}
	p.Wait()

	for _, key := range keys {
		if _, ok := results[key]; !ok {
			results[key] = types.Outcome{Kind: types.NotAttempted}
		}
	}
	return results
}
