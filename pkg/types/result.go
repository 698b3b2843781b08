// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
)

// OutcomeKind tags the result of one synchronization attempt.
type OutcomeKind int

const (
	// NotAttempted marks an entry that was never dispatched (run cancelled).
	NotAttempted OutcomeKind = iota
	// Matched means the source returned a confident candidate record.
	Matched
	// NoMatch means the source had no sufficiently confident candidate.
	NoMatch
	// Failed means the lookup failed; see FailureKind.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case NoMatch:
		return "unmatched"
	case Failed:
		return "failed"
	default:
		return "not-attempted"
	}
}

// FailureKind classifies a failed lookup.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureUnreachable
	FailureRateLimited
	FailureMalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureUnreachable:
		return "unreachable"
	case FailureRateLimited:
		return "rate-limited"
	case FailureMalformedResponse:
		return "malformed-response"
	default:
		return ""
	}
}

// Transient reports whether a retry of the same lookup could succeed.
func (k FailureKind) Transient() bool {
	return k == FailureTimeout || k == FailureUnreachable || k == FailureRateLimited
}

// Outcome is the value every lookup produces: Matched(Record), NoMatch,
// Failed(kind) or NotAttempted. Lookups never report faults any other way.
type Outcome struct {
	Kind    OutcomeKind
	Record  *Record
	Failure FailureKind
	// Err carries the underlying cause of a Failed outcome for diagnostics.
	Err error
}

// MatchedOutcome wraps a matched record.
func MatchedOutcome(rec Record) Outcome {
	return Outcome{Kind: Matched, Record: &rec}
}

// NoMatchOutcome returns the NoMatch outcome.
func NoMatchOutcome() Outcome {
	return Outcome{Kind: NoMatch}
}

// FailedOutcome returns a Failed outcome of the given kind.
func FailedOutcome(kind FailureKind, err error) Outcome {
	return Outcome{Kind: Failed, Failure: kind, Err: err}
}

// String renders the outcome tag, including the failure kind for Failed.
func (o Outcome) String() string {
	if o.Kind == Failed {
		return fmt.Sprintf("failed(%s)", o.Failure)
	}
	return o.Kind.String()
}

// SyncResult is the engine's per-identifier product.
type SyncResult struct {
	// Entry is the final entry: merged for Matched, the original otherwise.
	Entry Entry
	// Outcome is the lookup outcome for the entry.
	Outcome Outcome
	// Changed lists the fields the merge updated, sorted.
	Changed []string
}

// SyncResults maps citation keys to their sync result.
type SyncResults map[string]SyncResult

// Summary holds per-outcome counts for a synchronization run.
type Summary struct {
	Matched      int `json:"matched" yaml:"matched"`
	Updated      int `json:"updated" yaml:"updated"`
	Unmatched    int `json:"unmatched" yaml:"unmatched"`
	Failed       int `json:"failed" yaml:"failed"`
	NotAttempted int `json:"not_attempted" yaml:"not_attempted"`
}

// Total returns the number of entries covered by the summary.
func (s Summary) Total() int {
	return s.Matched + s.Unmatched + s.Failed + s.NotAttempted
}

func (s Summary) String() string {
	return fmt.Sprintf("%d matched (%d updated), %d unmatched, %d failed, %d not attempted",
		s.Matched, s.Updated, s.Unmatched, s.Failed, s.NotAttempted)
}

// Summary counts results per outcome category.
func (r SyncResults) Summary() Summary {
	var s Summary
	for _, res := range r {
		switch res.Outcome.Kind {
		case Matched:
			s.Matched++
			if len(res.Changed) > 0 {
				s.Updated++
			}
		case NoMatch:
			s.Unmatched++
		case Failed:
			s.Failed++
		default:
			s.NotAttempted++
		}
	}
	return s
}

// Keys returns the result identifiers in sorted order.
func (r SyncResults) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the final entries keyed by identifier.
func (r SyncResults) Entries() map[string]Entry {
	out := make(map[string]Entry, len(r))
	for k, res := range r {
		out[k] = res.Entry
	}
	return out
}
