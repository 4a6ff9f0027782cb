// Package runner schedules and executes test cases as subprocesses. A
// bounded pool of worker slots is the only point of true parallelism;
// every worker runs one test case at a time, its attempts strictly
// sequential. A single dispatcher goroutine owns all mutable aggregate
// state and is the only producer of run events, which guarantees emission
// order and at-most-one finalization per test case.
package runner

import (
	"context"
	"runtime"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Dzordzu/nextest/events"
	"github.com/Dzordzu/nextest/targetrunner"
	"github.com/Dzordzu/nextest/testlist"
)

// Settings configures a Runner. Zero values fall back to defaults where
// noted.
type Settings struct {
	// TestThreads is the global concurrency limit. Defaults to NumCPU.
	TestThreads int
	// Retries is the run-wide retry policy.
	Retries RetryPolicy
	// PolicyFor, when set, supplies the already-resolved per-test policy
	// override.
	PolicyFor func(tc testlist.TestCase) RetryPolicy
	// Timeout is the per-attempt wall-clock budget; 0 means none.
	Timeout time.Duration
	// LeakTimeout bounds how long to wait for a test's output pipes after
	// the process exits. Defaults to 100ms.
	LeakTimeout time.Duration
	// FailFast cancels the run after the first failed test case.
	FailFast bool
	// RunnerFor resolves the target runner wrapper for a binary; nil means
	// direct invocation for everything.
	RunnerFor func(*testlist.TestBinary) *targetrunner.TargetRunner
	// ExtraEnv is appended to every spawned process's environment.
	ExtraEnv []string
	// Clock drives backoff timers, attempt timeouts and the run
	// stopwatch. Defaults to the wall clock.
	Clock  clock.Clock
	Logger zerolog.Logger
}

// Runner executes a test list. Build once per run.
type Runner struct {
	settings Settings
	runID    string
}

// Sink consumes run events. It is invoked from a single goroutine in
// emission order; event values must not be retained past the call unless
// copied, except for output buffers, whose ownership transfers to the
// consumer.
type Sink func(events.TestEvent)

// New builds a Runner, applying setting defaults.
func New(settings Settings) *Runner {
	if settings.TestThreads <= 0 {
		settings.TestThreads = runtime.NumCPU()
	}
	if settings.LeakTimeout <= 0 {
		settings.LeakTimeout = defaultLeakTimeout
	}
	if settings.Clock == nil {
		settings.Clock = clock.NewClock()
	}
	return &Runner{
		settings: settings,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this run; it is also exported to spawned processes.
func (r *Runner) RunID() string { return r.runID }

// Run executes the list and streams events into sink. It blocks until the
// run-finished event has been emitted and returns the final stats.
//
// Cancelling ctx stops scheduling of new attempts immediately: in-flight
// attempts are forcibly terminated (their process groups killed) and
// classified as execution failures, queued test cases are finalized as
// not-run, and the run-finished event is still emitted with full stats.
// Repeated cancellations are idempotent.
func (r *Runner) Run(ctx context.Context, list *testlist.TestList, sink Sink) *events.RunStats {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	clk := r.settings.Clock
	start := clk.Now()
	stats := &events.RunStats{Initial: list.Len()}

	d := &dispatcher{
		runner:    r,
		sink:      sink,
		stats:     stats,
		cancel:    cancel,
		finalized: make(map[string]struct{}),
	}

	d.emit(events.TestEvent{
		Kind:      events.KindRunStarted,
		RunID:     r.runID,
		TestCount: list.Len(),
	})

	var skipped, runnable []testlist.TestCase
	for _, tc := range list.TestCases() {
		if tc.Ignored {
			skipped = append(skipped, tc)
		} else {
			runnable = append(runnable, tc)
		}
	}

	msgs := make(chan events.TestEvent, r.settings.TestThreads)
	work := make(chan testlist.TestCase)

	var senders sync.WaitGroup

	// Feeder. On cancellation the tests still queued here are finalized
	// as not-run.
	senders.Add(1)
	go func() {
		defer senders.Done()
		for _, tc := range skipped {
			msgs <- finalizeEvent(tc, events.FinalSkipped)
		}
		for i, tc := range runnable {
			select {
			case work <- tc:
			case <-runCtx.Done():
				for _, rest := range runnable[i:] {
					msgs <- finalizeEvent(rest, events.FinalNotRun)
				}
				close(work)
				return
			}
		}
		close(work)
	}()

	for i := 0; i < r.settings.TestThreads; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for tc := range work {
				if runCtx.Err() != nil {
					msgs <- finalizeEvent(tc, events.FinalNotRun)
					continue
				}
				r.runTest(runCtx, tc, msgs)
			}
		}()
	}

	go func() {
		senders.Wait()
		close(msgs)
	}()

	for msg := range msgs {
		d.dispatch(runCtx, msg)
	}

	statsCopy := *stats
	d.emit(events.TestEvent{
		Kind:    events.KindRunFinished,
		RunID:   r.runID,
		Stats:   &statsCopy,
		Elapsed: clk.Since(start),
	})
	return stats
}

// runTest runs one test case's attempts sequentially, up to 1+retries,
// stopping early on the first pass.
func (r *Runner) runTest(ctx context.Context, tc testlist.TestCase, msgs chan<- events.TestEvent) {
	policy := r.settings.Retries
	if r.settings.PolicyFor != nil {
		policy = r.settings.PolicyFor(tc)
	}
	total := policy.Count + 1

	var attempts []*events.ExecuteStatus
	for attempt := 1; attempt <= total; attempt++ {
		msgs <- events.TestEvent{
			Kind:          events.KindAttemptStarted,
			Test:          tc,
			AttemptNumber: attempt,
			TotalAttempts: total,
		}
		status := r.executeAttempt(ctx, tc, attempt)
		attempts = append(attempts, status)
		msgs <- events.TestEvent{
			Kind:          events.KindAttemptFinished,
			Test:          tc,
			AttemptNumber: attempt,
			TotalAttempts: total,
			Attempt:       status,
		}

		if status.Result.IsSuccess() || ctx.Err() != nil {
			break
		}
		if status.Result == events.ResultTimeout && !policy.RetryTimeouts {
			break
		}
		if attempt == total {
			break
		}
		if delay := policy.DelayFor(attempt); delay > 0 {
			// The backoff holds the worker slot: the next attempt of this
			// test must not overlap anything else in this slot.
			timer := r.settings.Clock.NewTimer(delay)
			select {
			case <-timer.C():
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}

	msgs <- events.TestEvent{
		Kind:    events.KindTestFinalized,
		Test:    tc,
		Outcome: deriveOutcome(tc, attempts),
	}
}

// deriveOutcome computes the retry-resolved disposition from a test's
// attempts. A pass on the first attempt is Passed, a later pass is Flaky;
// with no pass the terminal attempt's class decides between Failed,
// TimedOut and ExecFailed.
func deriveOutcome(tc testlist.TestCase, attempts []*events.ExecuteStatus) *events.TestOutcome {
	outcome := &events.TestOutcome{Test: tc, Attempts: attempts}
	if len(attempts) == 0 {
		outcome.Result = events.FinalNotRun
		return outcome
	}
	last := attempts[len(attempts)-1]
	switch {
	case last.Result.IsSuccess() && len(attempts) == 1:
		outcome.Result = events.FinalPassed
	case last.Result.IsSuccess():
		outcome.Result = events.FinalFlaky
	case last.Result == events.ResultTimeout:
		outcome.Result = events.FinalTimedOut
	case last.Result == events.ResultExecFail:
		outcome.Result = events.FinalExecFailed
	default:
		outcome.Result = events.FinalFailed
	}
	return outcome
}

func finalizeEvent(tc testlist.TestCase, result events.FinalResult) events.TestEvent {
	return events.TestEvent{
		Kind:    events.KindTestFinalized,
		Test:    tc,
		Outcome: &events.TestOutcome{Test: tc, Result: result},
	}
}

// dispatcher serializes event emission. It runs on the Run goroutine and
// is the only writer of stats and the finalization ledger.
type dispatcher struct {
	runner        *Runner
	sink          Sink
	stats         *events.RunStats
	cancel        context.CancelFunc
	finalized     map[string]struct{}
	cancelEmitted bool
}

func (d *dispatcher) emit(ev events.TestEvent) {
	ev.Time = d.runner.settings.Clock.Now()
	d.sink(ev)
}

func (d *dispatcher) noteCancel() {
	if d.cancelEmitted {
		return
	}
	d.cancelEmitted = true
	d.emit(events.TestEvent{Kind: events.KindRunCancelRequested, RunID: d.runner.runID})
}

func (d *dispatcher) dispatch(runCtx context.Context, ev events.TestEvent) {
	if runCtx.Err() != nil {
		d.noteCancel()
	}
	if ev.Kind == events.KindTestFinalized {
		key := ev.Test.Binary.ID() + "\x00" + ev.Test.Name
		if _, dup := d.finalized[key]; dup {
			d.runner.settings.Logger.Error().
				Str("test", ev.Test.String()).
				Msg("Dropping duplicate finalization")
			return
		}
		d.finalized[key] = struct{}{}
		d.stats.Record(ev.Outcome)
	}
	d.emit(ev)

	if ev.Kind == events.KindTestFinalized &&
		d.runner.settings.FailFast &&
		!ev.Outcome.Result.IsSuccess() &&
		ev.Outcome.Result != events.FinalNotRun {
		d.cancel()
		d.noteCancel()
	}
}
