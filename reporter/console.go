// Package reporter renders the scheduler's event stream for humans and
// machines: a console view, a JUnit XML file and a JSON outcome report.
// Reporters are passive consumers; they never influence scheduling.
package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/Dzordzu/nextest/events"
)

// Console renders run events as status lines on an io.Writer. It must be
// fed events from a single goroutine in emission order.
type Console struct {
	w             io.Writer
	statusLevel   events.StatusLevel
	outputDisplay events.TestOutputDisplay

	// failing collects outcomes whose output is replayed after the
	// summary when the display mode asks for it.
	failing []*events.TestOutcome
}

// NewConsole builds a console reporter honoring the given status level
// and output display mode.
func NewConsole(w io.Writer, statusLevel events.StatusLevel, outputDisplay events.TestOutputDisplay) *Console {
	return &Console{w: w, statusLevel: statusLevel, outputDisplay: outputDisplay}
}

// Report consumes one event.
func (c *Console) Report(ev events.TestEvent) {
	switch ev.Kind {
	case events.KindRunStarted:
		fmt.Fprintf(c.w, "------------\n    Starting %d tests (run %s)\n", ev.TestCount, ev.RunID)

	case events.KindAttemptStarted:
		if ev.AttemptNumber > 1 && c.statusLevel.Includes(events.StatusLevelRetry) {
			fmt.Fprintf(c.w, "       RETRY %d/%d %s\n", ev.AttemptNumber, ev.TotalAttempts, ev.Test)
		}

	case events.KindAttemptFinished:
		c.attemptFinished(ev)

	case events.KindTestFinalized:
		c.testFinalized(ev)

	case events.KindRunCancelRequested:
		fmt.Fprintf(c.w, "   Cancelling: no new tests will be started\n")

	case events.KindRunFinished:
		fmt.Fprintf(c.w, "------------\n     Summary [%s] %s\n", formatDuration(ev.Elapsed), ev.Stats.Summary())
		if c.outputDisplay.ShowsFinal() {
			for _, o := range c.failing {
				c.printOutput(o.Terminal(), o)
			}
		}
	}
}

// attemptFinished reports non-terminal failing attempts; terminal
// attempts are reported by the finalized event.
func (c *Console) attemptFinished(ev events.TestEvent) {
	if ev.Attempt.Result.IsSuccess() || ev.AttemptNumber >= ev.TotalAttempts {
		return
	}
	if c.statusLevel.Includes(events.StatusLevelRetry) {
		fmt.Fprintf(c.w, "  TRY %d FAIL [%s] %s\n", ev.AttemptNumber, formatDuration(ev.Attempt.Duration), ev.Test)
	}
	if c.outputDisplay.ShowsImmediate() {
		c.printOutput(ev.Attempt, &events.TestOutcome{Test: ev.Test})
	}
}

func (c *Console) testFinalized(ev events.TestEvent) {
	o := ev.Outcome
	label, level := outcomeLabel(o)
	if c.statusLevel.Includes(level) {
		elapsed := ""
		if t := o.Terminal(); t != nil {
			elapsed = fmt.Sprintf(" [%s]", formatDuration(t.Duration))
		}
		fmt.Fprintf(c.w, "%12s%s %s\n", label, elapsed, o.Test)
	}
	if o.Result.IsSuccess() || o.Terminal() == nil {
		return
	}
	if c.outputDisplay.ShowsImmediate() {
		c.printOutput(o.Terminal(), o)
	}
	if c.outputDisplay.ShowsFinal() {
		c.failing = append(c.failing, o)
	}
}

func (c *Console) printOutput(status *events.ExecuteStatus, o *events.TestOutcome) {
	if status == nil {
		return
	}
	fmt.Fprintf(c.w, "--- output: %s (attempt %d) ---\n", o.Test, status.Attempt)
	c.w.Write(status.Output)
	if len(status.Output) > 0 && status.Output[len(status.Output)-1] != '\n' {
		fmt.Fprintln(c.w)
	}
	if status.Cause != "" {
		fmt.Fprintf(c.w, "(%s)\n", status.Cause)
	}
}

// outcomeLabel maps an outcome to its status line label and the level at
// which it becomes visible.
func outcomeLabel(o *events.TestOutcome) (string, events.StatusLevel) {
	switch o.Result {
	case events.FinalPassed:
		if o.Leaked() {
			return "LEAK", events.StatusLevelPass
		}
		return "PASS", events.StatusLevelPass
	case events.FinalFlaky:
		return "FLAKY", events.StatusLevelRetry
	case events.FinalFailed:
		return "FAIL", events.StatusLevelFail
	case events.FinalExecFailed:
		return "EXECFAIL", events.StatusLevelFail
	case events.FinalTimedOut:
		return "TIMEOUT", events.StatusLevelFail
	case events.FinalSkipped:
		return "SKIP", events.StatusLevelSkip
	default:
		return "NOTRUN", events.StatusLevelFail
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
