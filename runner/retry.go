package runner

// This file contains the retry policy: how many extra attempts a failing
// test gets and how long to back off between them.

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BackoffKind selects the delay progression between attempts.
type BackoffKind string

const (
	BackoffNone        BackoffKind = "none"
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

var backoffKinds = map[string]BackoffKind{
	string(BackoffNone):        BackoffNone,
	string(BackoffFixed):       BackoffFixed,
	string(BackoffExponential): BackoffExponential,
}

// BackoffParseError indicates an unrecognized backoff kind string.
type BackoffParseError struct {
	Input string
}

func (e *BackoffParseError) Error() string {
	keys := make([]string, 0, len(backoffKinds))
	for k := range backoffKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("unrecognized retry backoff: %q (known values: %s)", e.Input, strings.Join(keys, ", "))
}

// ParseBackoff parses a backoff kind string.
func ParseBackoff(s string) (BackoffKind, error) {
	k, ok := backoffKinds[s]
	if !ok {
		return "", &BackoffParseError{Input: s}
	}
	return k, nil
}

// RetryPolicy is the effective, already-resolved policy for one test: the
// scheduler never consults configuration itself.
type RetryPolicy struct {
	// Count is the number of retries beyond the first attempt.
	Count int
	// Backoff selects the delay progression; Delay seeds it and MaxDelay
	// caps exponential growth (0 = uncapped).
	Backoff  BackoffKind
	Delay    time.Duration
	MaxDelay time.Duration
	// RetryTimeouts controls whether a timed-out attempt is retried like
	// a failure. Either way a timeout consumes one attempt of the budget.
	RetryTimeouts bool
}

// DefaultRetryPolicy returns the policy used when no configuration
// overrides it: no retries, timeouts retryable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: BackoffNone, RetryTimeouts: true}
}

// DelayFor returns the backoff before the attempt following attempt
// (1-based).
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	switch p.Backoff {
	case BackoffFixed:
		return p.Delay
	case BackoffExponential:
		delay := p.Delay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				return p.MaxDelay
			}
		}
		return delay
	default:
		return 0
	}
}
