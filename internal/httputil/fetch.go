// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP plumbing shared by the remote sources:
// one GET per call, a shared rate budget, and typed status errors.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/bibsync/pkg/types"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// ErrRateBudget is returned when the shared rate budget cannot grant a
// request slot before the call's deadline.
var ErrRateBudget = errors.New("rate budget exhausted before deadline")

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned HTTP %d", e.URL, e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Fetcher issues single GET requests. All lookups of a run share one Fetcher,
// so the limiter is the run's rate budget and the client's transport its
// connection budget.
type Fetcher struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// NewFetcher builds a Fetcher from cfg. The per-call deadline is applied by
// callers through the context, not by the http.Client.
func NewFetcher(cfg types.HTTPConfig) *Fetcher {
	f := &Fetcher{
		Client:    &http.Client{},
		UserAgent: UserAgent(cfg.UserAgent, cfg.Mailto),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// UserAgent appends the polite-pool contact to base when mailto is set.
func UserAgent(base, mailto string) string {
	if base == "" {
		base = "bibsync/dev"
	}
	if mailto == "" {
		return base
	}
	return fmt.Sprintf("%s (mailto:%s)", base, strings.TrimSpace(mailto))
}

// Get executes exactly one GET request for rawURL and returns the body of a
// 200 response. Non-200 responses yield a *StatusError; the body is drained
// and closed. Waiting for the rate budget honours ctx.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrRateBudget, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
