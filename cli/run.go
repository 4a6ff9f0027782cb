package cli

// This file contains the run command: the full discovery → partition →
// resolve → schedule/execute pipeline, reporters wired to the event
// stream, signal handling and exit code mapping.

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	clilib "github.com/urfave/cli/v2"

	"github.com/Dzordzu/nextest/config"
	"github.com/Dzordzu/nextest/events"
	"github.com/Dzordzu/nextest/reporter"
	"github.com/Dzordzu/nextest/runner"
	"github.com/Dzordzu/nextest/testlist"
)

// Exit codes: 0 clean pass, 100 at least one test failed, 130 run
// cancelled by signal, 1 fatal configuration/discovery/resolution or
// reporting error.
const (
	exitTestFailure = 100
	exitCancelled   = 130
)

func (a *App) run(ctx *clilib.Context) error {
	in, err := a.setup(ctx)
	if err != nil {
		return clilib.Exit(err.Error(), 1)
	}

	settings, statusLevel, outputDisplay, err := a.resolveRunSettings(ctx, in.profile)
	if err != nil {
		return clilib.Exit(err.Error(), 1)
	}
	settings.RunnerFor = in.runnerFor

	r := runner.New(settings)
	a.logger.Info().
		Str("run_id", r.RunID()).
		Int("tests", in.list.Len()).
		Int("test_threads", settings.TestThreads).
		Msg("Starting test run")

	// SIGINT/SIGTERM cancel the run; repeated signals are idempotent.
	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := reporter.NewConsole(os.Stdout, statusLevel, outputDisplay)
	var outcomes []*events.TestOutcome
	var elapsed time.Duration
	sink := func(ev events.TestEvent) {
		console.Report(ev)
		switch ev.Kind {
		case events.KindTestFinalized:
			outcomes = append(outcomes, ev.Outcome)
		case events.KindRunFinished:
			elapsed = ev.Elapsed
		}
	}

	stats := r.Run(runCtx, in.list, sink)

	if err := a.writeReports(ctx, in.profile, r.RunID(), outcomes, stats, elapsed); err != nil {
		return clilib.Exit(err.Error(), 1)
	}

	switch {
	case runCtx.Err() != nil:
		return clilib.Exit("", exitCancelled)
	case stats.HasFailures():
		return clilib.Exit("", exitTestFailure)
	}
	return nil
}

// resolveRunSettings folds profile values and command-line overrides into
// the scheduler settings. All string surfaces are validated here, before
// anything runs.
func (a *App) resolveRunSettings(ctx *clilib.Context, profile *config.Profile) (runner.Settings, events.StatusLevel, events.TestOutputDisplay, error) {
	var zero runner.Settings

	backoff, err := runner.ParseBackoff(profile.RetryBackoff)
	if err != nil {
		return zero, "", "", err
	}
	policy := runner.RetryPolicy{
		Count:         profile.Retries,
		Backoff:       backoff,
		Delay:         profile.RetryDelay,
		RetryTimeouts: profile.RetryTimeouts,
	}

	var policyFor func(tc testlist.TestCase) runner.RetryPolicy
	if retries := ctx.Int("retries"); retries >= 0 {
		// Explicit flag overrides the profile and its per-test overrides.
		policy.Count = retries
	} else if len(profile.Overrides) > 0 {
		policyFor = func(tc testlist.TestCase) runner.RetryPolicy {
			p := policy
			p.Count = profile.RetriesFor(tc.Name)
			return p
		}
	}

	statusLevelStr := profile.StatusLevel
	if v := ctx.String("status-level"); v != "" {
		statusLevelStr = v
	}
	statusLevel, err := events.ParseStatusLevel(statusLevelStr)
	if err != nil {
		return zero, "", "", err
	}

	outputDisplayStr := profile.OutputDisplay
	if v := ctx.String("output-display"); v != "" {
		outputDisplayStr = v
	}
	outputDisplay, err := events.ParseTestOutputDisplay(outputDisplayStr)
	if err != nil {
		return zero, "", "", err
	}

	timeout := profile.Timeout
	if ctx.IsSet("timeout") {
		timeout = ctx.Duration("timeout")
	}
	threads := profile.TestThreads
	if ctx.IsSet("test-threads") {
		threads = ctx.Int("test-threads")
	}

	settings := runner.Settings{
		TestThreads: threads,
		Retries:     policy,
		PolicyFor:   policyFor,
		Timeout:     timeout,
		LeakTimeout: profile.LeakTimeout,
		FailFast:    profile.FailFast || ctx.Bool("fail-fast"),
		Logger:      a.logger,
	}
	return settings, statusLevel, outputDisplay, nil
}

// writeReports runs the JUnit and JSON writers after the run. Reporting
// failures never alter computed outcomes, but fail the process.
func (a *App) writeReports(ctx *clilib.Context, profile *config.Profile, runID string, outcomes []*events.TestOutcome, stats *events.RunStats, elapsed time.Duration) error {
	junitPath := profile.JUnitPath
	if v := ctx.String("junit"); v != "" {
		junitPath = v
	}
	if junitPath != "" {
		if err := reporter.WriteJUnitXML(junitPath, runID, outcomes, elapsed); err != nil {
			return err
		}
		a.logger.Info().Str("path", junitPath).Msg("JUnit report written")
	}

	if path := ctx.String("json-report"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return &reporter.WriteReportError{Kind: reporter.WriteReportIo, Err: err}
		}
		defer f.Close()
		if err := reporter.WriteReport(f, runID, outcomes, stats, elapsed); err != nil {
			return err
		}
		a.logger.Info().Str("path", path).Msg("JSON report written")
	}
	return nil
}
