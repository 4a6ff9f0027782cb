package runner

// This file contains single-attempt execution: spawn the test process in
// its own process group, capture its combined output, enforce the timeout
// and classify the exit. The subprocess is an exclusively-owned resource:
// every exit path, including cancellation and timeout, terminates the
// whole group before the attempt is finalized.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Dzordzu/nextest/events"
	"github.com/Dzordzu/nextest/targetrunner"
	"github.com/Dzordzu/nextest/testlist"
)

const defaultLeakTimeout = 100 * time.Millisecond

// executeAttempt runs one attempt of tc and returns its finalized status.
// It never returns an error; launch failures become exec-fail statuses.
func (r *Runner) executeAttempt(ctx context.Context, tc testlist.TestCase, attempt int) *events.ExecuteStatus {
	clk := r.settings.Clock

	var wrapper *targetrunner.TargetRunner
	if r.settings.RunnerFor != nil {
		wrapper = r.settings.RunnerFor(tc.Binary)
	}
	argv := wrapper.Wrap([]string{tc.Binary.Path, tc.Name, "--exact", "--nocapture"})

	cmd := exec.Command(argv[0], argv[1:]...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.Env = append(cmd.Environ(),
		"NEXTEST=1",
		"NEXTEST_RUN_ID="+r.runID,
		"NEXTEST_EXECUTION_MODE=process-per-test",
		fmt.Sprintf("NEXTEST_ATTEMPT=%d", attempt),
	)
	cmd.Env = append(cmd.Env, r.settings.ExtraEnv...)
	// Bound the post-exit pipe wait so a leaky grandchild holding stdout
	// open cannot stall the slot forever.
	cmd.WaitDelay = r.settings.LeakTimeout
	setProcessGroup(cmd)

	status := &events.ExecuteStatus{
		Attempt:   attempt,
		StartTime: clk.Now(),
		ExitCode:  -1,
	}

	if err := cmd.Start(); err != nil {
		status.Duration = clk.Since(status.StartTime)
		status.Result = events.ResultExecFail
		status.Cause = err.Error()
		return status
	}
	pid := cmd.Process.Pid

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if r.settings.Timeout > 0 {
		timer := clk.NewTimer(r.settings.Timeout)
		defer timer.Stop()
		timeoutC = timer.C()
	}

	var timedOut, cancelled bool
	var err error
	select {
	case err = <-waitErr:
	case <-timeoutC:
		timedOut = true
		killProcessGroup(pid)
		err = <-waitErr
	case <-ctx.Done():
		cancelled = true
		killProcessGroup(pid)
		err = <-waitErr
	}

	status.Duration = clk.Since(status.StartTime)
	status.Output = output.Bytes()

	var exitErr *exec.ExitError
	switch {
	case cancelled:
		status.Result = events.ResultExecFail
		status.Cause = "run cancelled"
	case timedOut:
		status.Result = events.ResultTimeout
		status.Cause = fmt.Sprintf("test exceeded timeout of %s", r.settings.Timeout)
	case err == nil:
		status.ExitCode = 0
		status.Result = events.ResultPass
	case errors.Is(err, exec.ErrWaitDelay):
		// Process exited zero but its output pipes stayed open past the
		// leak timeout: something it spawned is still alive.
		status.ExitCode = 0
		status.Result = events.ResultLeak
	default:
		if errors.As(err, &exitErr) {
			status.ExitCode = exitErr.ExitCode()
			status.Result = events.ResultFail
		} else {
			status.Result = events.ResultExecFail
			status.Cause = err.Error()
		}
	}

	r.reapProcessGroup(pid, status)
	return status
}

// reapProcessGroup scans for descendants that outlived the test process,
// records them as leaked, and sweeps the group so nothing escapes the
// attempt. Leaks are advisory: a passing attempt stays a pass (flagged
// leak) and a leak never triggers a retry.
func (r *Runner) reapProcessGroup(pid int, status *events.ExecuteStatus) {
	leaked := processGroupMembers(pid)
	if len(leaked) == 0 {
		return
	}
	status.LeakedPIDs = leaked
	if status.Result == events.ResultPass {
		status.Result = events.ResultLeak
	}
	r.settings.Logger.Warn().
		Int("pid", pid).
		Ints32("leaked_pids", leaked).
		Msg("Test left processes behind; killing process group")
	sweepProcessGroup(pid)
}
