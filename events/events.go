// Package events defines the vocabulary shared between the execution
// scheduler and its reporters: the closed set of run events, attempt and
// final statuses, and aggregate run statistics. Events are immutable once
// emitted and are delivered to exactly one consumer in emission order.
package events

import (
	"time"

	"github.com/Dzordzu/nextest/testlist"
)

// Kind discriminates run events.
type Kind string

const (
	// KindRunStarted is emitted once, before any attempt.
	KindRunStarted Kind = "run-started"
	// KindAttemptStarted is emitted before an attempt's process is spawned.
	KindAttemptStarted Kind = "attempt-started"
	// KindAttemptFinished is emitted after the attempt's process has fully
	// exited and its output is captured.
	KindAttemptFinished Kind = "attempt-finished"
	// KindTestFinalized is emitted exactly once per test case, after all
	// its attempt events.
	KindTestFinalized Kind = "test-finalized"
	// KindRunCancelRequested is emitted at most once, when a stop signal
	// or fail-fast trip halts scheduling of new attempts.
	KindRunCancelRequested Kind = "run-cancel-requested"
	// KindRunFinished is emitted once, strictly after every scheduled test
	// case has been finalized.
	KindRunFinished Kind = "run-finished"
)

// AttemptResult classifies a single attempt.
type AttemptResult string

const (
	// ResultPass means the process exited zero.
	ResultPass AttemptResult = "pass"
	// ResultLeak means the process passed but left live descendants (or
	// open output pipes) behind. Advisory; counts as a pass.
	ResultLeak AttemptResult = "leak"
	// ResultFail means the process exited non-zero.
	ResultFail AttemptResult = "fail"
	// ResultExecFail means the process could not be launched, or was
	// forcibly terminated by run cancellation.
	ResultExecFail AttemptResult = "exec-fail"
	// ResultTimeout means the process exceeded its wall-clock budget and
	// was killed.
	ResultTimeout AttemptResult = "timeout"
)

// IsSuccess reports whether the attempt counts as passing.
func (r AttemptResult) IsSuccess() bool {
	return r == ResultPass || r == ResultLeak
}

// ExecuteStatus records one finalized attempt of a test case.
type ExecuteStatus struct {
	// Attempt is 1-based.
	Attempt int `json:"attempt"`
	// StartTime is when the process was spawned.
	StartTime time.Time `json:"start_time"`
	// Duration is wall-clock time from spawn to exit (or kill).
	Duration time.Duration `json:"duration"`
	// Output is the combined captured stdout and stderr.
	Output []byte `json:"-"`
	// ExitCode is the process exit code; -1 when the process never ran or
	// was killed by a signal.
	ExitCode int `json:"exit_code"`
	// Result classifies the attempt.
	Result AttemptResult `json:"result"`
	// Cause carries the launch or termination error for exec-fail and
	// timeout results.
	Cause string `json:"cause,omitempty"`
	// LeakedPIDs lists descendants still alive after the process exited.
	LeakedPIDs []int32 `json:"leaked_pids,omitempty"`
}

// FinalResult is the retry-resolved disposition of a test case.
type FinalResult string

const (
	// FinalPassed: the first attempt passed.
	FinalPassed FinalResult = "passed"
	// FinalFlaky: a later attempt passed after at least one failure.
	FinalFlaky FinalResult = "flaky"
	// FinalFailed: every attempt failed; the terminal attempt was an
	// in-test failure.
	FinalFailed FinalResult = "failed"
	// FinalExecFailed: every attempt failed; the terminal attempt could
	// not launch or was terminated by cancellation.
	FinalExecFailed FinalResult = "exec-failed"
	// FinalTimedOut: every attempt failed; the terminal attempt timed out.
	FinalTimedOut FinalResult = "timed-out"
	// FinalSkipped: the test is flagged ignored and was not requested.
	FinalSkipped FinalResult = "skipped"
	// FinalNotRun: the run was cancelled before the test got an attempt.
	FinalNotRun FinalResult = "not-run"
)

// IsSuccess reports whether the outcome does not fail the run. Skipped
// tests do not fail the run; not-run tests do.
func (r FinalResult) IsSuccess() bool {
	switch r {
	case FinalPassed, FinalFlaky, FinalSkipped:
		return true
	}
	return false
}

// TestOutcome is the final disposition of one test case together with all
// its attempts.
type TestOutcome struct {
	Test     testlist.TestCase `json:"-"`
	Result   FinalResult       `json:"result"`
	Attempts []*ExecuteStatus  `json:"attempts,omitempty"`
}

// Terminal returns the last attempt, or nil for skipped/not-run outcomes.
func (o *TestOutcome) Terminal() *ExecuteStatus {
	if len(o.Attempts) == 0 {
		return nil
	}
	return o.Attempts[len(o.Attempts)-1]
}

// Leaked reports whether any attempt left live descendants behind.
func (o *TestOutcome) Leaked() bool {
	for _, a := range o.Attempts {
		if len(a.LeakedPIDs) > 0 || a.Result == ResultLeak {
			return true
		}
	}
	return false
}

// TestEvent is one timestamped occurrence in the execution pipeline. The
// populated fields depend on Kind.
type TestEvent struct {
	Time time.Time
	Kind Kind

	// RunID identifies the run; set on run-started.
	RunID string
	// TestCount is the number of scheduled test cases; set on run-started.
	TestCount int

	// Test is set on attempt-started, attempt-finished and test-finalized.
	Test testlist.TestCase
	// AttemptNumber (1-based) and TotalAttempts (retry budget + 1) are set
	// on attempt-started and attempt-finished.
	AttemptNumber int
	TotalAttempts int
	// Attempt is set on attempt-finished.
	Attempt *ExecuteStatus
	// Outcome is set on test-finalized.
	Outcome *TestOutcome

	// Stats and Elapsed are set on run-finished.
	Stats   *RunStats
	Elapsed time.Duration
}
