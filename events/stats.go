package events

// This file contains aggregate run statistics carried on the run-finished
// event and sampled by status displays during the run.

import "fmt"

// RunStats aggregates per-outcome counts for one run. The scheduler's
// dispatcher is the only writer; consumers receive copies.
type RunStats struct {
	// Initial is the number of scheduled test cases.
	Initial int `json:"initial"`
	// Finalized is the number of test cases with a final outcome so far.
	Finalized int `json:"finalized"`
	// Attempts is the total number of attempts executed.
	Attempts int `json:"attempts"`

	Passed     int `json:"passed"`
	Flaky      int `json:"flaky"`
	Failed     int `json:"failed"`
	ExecFailed int `json:"exec_failed"`
	TimedOut   int `json:"timed_out"`
	Skipped    int `json:"skipped"`
	NotRun     int `json:"not_run"`

	// Leaked counts test cases that left live descendants behind.
	// Advisory; leaked tests are counted in their outcome bucket too.
	Leaked int `json:"leaked"`
}

// Record folds one finalized outcome into the stats.
func (s *RunStats) Record(o *TestOutcome) {
	s.Finalized++
	s.Attempts += len(o.Attempts)
	if o.Leaked() {
		s.Leaked++
	}
	switch o.Result {
	case FinalPassed:
		s.Passed++
	case FinalFlaky:
		s.Flaky++
	case FinalFailed:
		s.Failed++
	case FinalExecFailed:
		s.ExecFailed++
	case FinalTimedOut:
		s.TimedOut++
	case FinalSkipped:
		s.Skipped++
	case FinalNotRun:
		s.NotRun++
	}
}

// HasFailures reports whether any test case failed the run.
func (s *RunStats) HasFailures() bool {
	return s.Failed+s.ExecFailed+s.TimedOut+s.NotRun > 0
}

// Summary renders a one-line human-readable digest.
func (s *RunStats) Summary() string {
	out := fmt.Sprintf("%d tests run: %d passed", s.Initial-s.Skipped, s.Passed+s.Flaky)
	if s.Flaky > 0 {
		out += fmt.Sprintf(" (%d flaky)", s.Flaky)
	}
	failed := s.Failed + s.ExecFailed + s.TimedOut
	if failed > 0 {
		out += fmt.Sprintf(", %d failed", failed)
	}
	if s.TimedOut > 0 {
		out += fmt.Sprintf(" (%d timed out)", s.TimedOut)
	}
	if s.NotRun > 0 {
		out += fmt.Sprintf(", %d not run", s.NotRun)
	}
	if s.Leaked > 0 {
		out += fmt.Sprintf(", %d leaky", s.Leaked)
	}
	out += fmt.Sprintf(", %d skipped", s.Skipped)
	return out
}
