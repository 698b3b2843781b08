package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pdiddy/bibsync/internal/httputil"
	"github.com/pdiddy/bibsync/pkg/types"
)

// errMalformed marks a response that cannot be read as a bibliographic record.
var errMalformed = errors.New("malformed response")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errMalformed, fmt.Sprintf(format, args...))
}

// Classify maps a lookup error to its failure kind.
func Classify(err error) types.FailureKind {
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, errMalformed):
		return types.FailureMalformedResponse
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, httputil.ErrRateBudget):
		return types.FailureTimeout
	case httputil.StatusCode(err) == http.StatusTooManyRequests:
		return types.FailureRateLimited
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailureTimeout
	}
	return types.FailureUnreachable
}

// failure turns a lookup error into an outcome. A 404 from an identifier
// endpoint means the source does not know the DOI.
func failure(err error) types.Outcome {
	if httputil.StatusCode(err) == http.StatusNotFound {
		return types.NoMatchOutcome()
	}
	return types.FailedOutcome(Classify(err), err)
}
