// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"

	"github.com/pdiddy/bibsync/pkg/types"
)

// retryBaseDelay is the first backoff interval between attempts. Tests
// override it to keep runs fast.
var retryBaseDelay = 500 * time.Millisecond

// withRetry wraps lookup so that transient failures (timeout, unreachable,
// rate limited) are attempted up to retries more times with exponential
// backoff. Other outcomes return immediately. retries <= 0 returns lookup
// unchanged.
func withRetry(lookup LookupFunc, retries int, logger *log.Logger) LookupFunc {
	if retries <= 0 {
		return lookup
	}
	return func(ctx context.Context, key string) types.Outcome {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = retryBaseDelay
		b.MaxInterval = 16 * retryBaseDelay

		var last types.Outcome
		attempt := 0
		op := func() (types.Outcome, error) {
			attempt++
			last = lookup(ctx, key)
			if last.Kind != types.Failed || !last.Failure.Transient() {
				return last, nil
			}
			if attempt <= retries {
				logger.Debug("retrying lookup", "key", key, "attempt", attempt, "failure", last.Failure)
			}
			if last.Err != nil {
				return last, last.Err
			}
			return last, errors.New(last.String())
		}

		out, err := backoff.Retry(ctx, op,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(retries+1)),
		)
		if err != nil {
			return last
		}
		return out
	}
}
