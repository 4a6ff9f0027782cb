// Package testlist discovers the test cases inside compiled test
// binaries. A TestList is built once per run by invoking every binary in
// list mode (through its target runner when one is resolved) and is never
// mutated afterwards; filtering and partitioning derive new lists.
package testlist

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Dzordzu/nextest/targetrunner"
)

// RunIgnoredMode controls how tests flagged ignored are handled.
type RunIgnoredMode string

const (
	// RunIgnoredDefault keeps ignored tests in the list but does not run
	// them; the scheduler finalizes them as skipped.
	RunIgnoredDefault RunIgnoredMode = "default"
	// RunIgnoredOnly runs only the ignored tests.
	RunIgnoredOnly RunIgnoredMode = "ignored-only"
	// RunIgnoredAll runs ignored and non-ignored tests alike.
	RunIgnoredAll RunIgnoredMode = "all"
)

var runIgnoredModes = map[string]RunIgnoredMode{
	string(RunIgnoredDefault): RunIgnoredDefault,
	string(RunIgnoredOnly):    RunIgnoredOnly,
	string(RunIgnoredAll):     RunIgnoredAll,
}

// RunIgnoredParseError indicates an unrecognized run-ignored mode string.
type RunIgnoredParseError struct {
	Input string
}

func (e *RunIgnoredParseError) Error() string {
	return fmt.Sprintf("unrecognized run-ignored mode: %q (known values: %s)", e.Input, sortedKeys(runIgnoredModes))
}

// ParseRunIgnoredMode parses a run-ignored mode string.
func ParseRunIgnoredMode(s string) (RunIgnoredMode, error) {
	m, ok := runIgnoredModes[s]
	if !ok {
		return "", &RunIgnoredParseError{Input: s}
	}
	return m, nil
}

// TestFilter selects which discovered tests end up in the list and
// whether ignored tests are explicitly requested.
type TestFilter struct {
	// Patterns are substring matches against test names; empty means all.
	Patterns []string
	// RunIgnored is the ignored-test handling mode.
	RunIgnored RunIgnoredMode
}

func (f *TestFilter) matchName(name string) bool {
	if len(f.Patterns) == 0 {
		return true
	}
	for _, p := range f.Patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// TestCase is one named test inside a binary. Identity is the (binary ID,
// exact name) pair.
type TestCase struct {
	Binary *TestBinary `json:"-"`
	Name   string      `json:"name"`
	// Ignored reports that the test is flagged ignored and was not
	// explicitly requested; the scheduler finalizes it as skipped without
	// running it.
	Ignored bool `json:"ignored,omitempty"`
	// Tags carries filter-relevant markers, e.g. "benchmark".
	Tags []string `json:"tags,omitempty"`
}

// String renders the test's display name.
func (tc TestCase) String() string {
	return tc.Binary.ID() + " " + tc.Name
}

// BinaryList groups one binary's tests, sorted by name.
type BinaryList struct {
	Binary *TestBinary
	Tests  []TestCase
}

// TestList is the immutable snapshot of all discovered test cases,
// grouped by binary. Binaries are sorted by ID and tests by name, which
// makes iteration order deterministic across processes; the count-based
// partitioner depends on that.
type TestList struct {
	Binaries []BinaryList
	total    int
}

// Len returns the number of test cases in the list.
func (l *TestList) Len() int { return l.total }

// TestCases returns all test cases in deterministic order.
func (l *TestList) TestCases() []TestCase {
	out := make([]TestCase, 0, l.total)
	for _, bl := range l.Binaries {
		out = append(out, bl.Tests...)
	}
	return out
}

// Filter derives a new list containing the test cases keep accepts. The
// receiver is not modified.
func (l *TestList) Filter(keep func(TestCase) bool) *TestList {
	derived := &TestList{}
	for _, bl := range l.Binaries {
		var tests []TestCase
		for _, tc := range bl.Tests {
			if keep(tc) {
				tests = append(tests, tc)
			}
		}
		if len(tests) > 0 {
			derived.Binaries = append(derived.Binaries, BinaryList{Binary: bl.Binary, Tests: tests})
			derived.total += len(tests)
		}
	}
	return derived
}

// ListSettings configures test list construction.
type ListSettings struct {
	Filter TestFilter
	// ListThreads bounds how many binaries are listed in parallel.
	// Defaults to the number of CPUs.
	ListThreads int
	Logger      zerolog.Logger
}

// New builds the test list by running every binary in list mode. Binaries
// are listed in parallel under a bounded errgroup; any binary failing
// fails the whole stage with per-binary detail.
func New(ctx context.Context, binaries []*TestBinary, runnerFor func(*TestBinary) *targetrunner.TargetRunner, settings ListSettings) (*TestList, error) {
	threads := settings.ListThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	discovered := make([][]TestCase, len(binaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, bin := range binaries {
		i, bin := i, bin
		g.Go(func() error {
			tests, err := listBinary(gctx, bin, runnerFor(bin), settings)
			if err != nil {
				return fmt.Errorf("listing tests in %s: %w", bin.ID(), err)
			}
			discovered[i] = tests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cases []TestCase
	for i := range binaries {
		cases = append(cases, discovered[i]...)
	}
	list, err := Assemble(cases)
	if err != nil {
		return nil, err
	}

	settings.Logger.Debug().
		Int("binaries", len(list.Binaries)).
		Int("tests", list.total).
		Msg("Test list built")

	return list, nil
}

// Assemble builds an immutable list from already-discovered test cases:
// grouped by binary, binaries sorted by ID, tests sorted by name. Two
// cases sharing the same (binary, name) identity fail construction.
func Assemble(cases []TestCase) (*TestList, error) {
	byBinary := make(map[string]*BinaryList)
	seen := make(map[string]struct{})
	for _, tc := range cases {
		id := tc.Binary.ID()
		bl, ok := byBinary[id]
		if !ok {
			bl = &BinaryList{Binary: tc.Binary}
			byBinary[id] = bl
		}
		key := id + "\x00" + tc.Name
		if _, dup := seen[key]; dup {
			return nil, &DuplicateTestError{BinaryID: id, Name: tc.Name}
		}
		seen[key] = struct{}{}
		bl.Tests = append(bl.Tests, tc)
	}

	list := &TestList{}
	for _, bl := range byBinary {
		sort.Slice(bl.Tests, func(i, j int) bool { return bl.Tests[i].Name < bl.Tests[j].Name })
		list.Binaries = append(list.Binaries, *bl)
		list.total += len(bl.Tests)
	}
	sort.Slice(list.Binaries, func(i, j int) bool {
		return list.Binaries[i].Binary.ID() < list.Binaries[j].Binary.ID()
	})
	return list, nil
}

// listBinary discovers one binary's tests: a normal list-mode pass plus an
// --ignored pass, then the filter decides membership and skip status.
func listBinary(ctx context.Context, bin *TestBinary, runner *targetrunner.TargetRunner, settings ListSettings) ([]TestCase, error) {
	listed, err := runListMode(ctx, bin, runner, false)
	if err != nil {
		return nil, err
	}
	ignored, err := runListMode(ctx, bin, runner, true)
	if err != nil {
		return nil, err
	}

	var tests []TestCase
	add := func(lt listedTest, isIgnored bool) {
		if !settings.Filter.matchName(lt.Name) {
			return
		}
		tc := TestCase{Binary: bin, Name: lt.Name}
		if lt.Benchmark {
			tc.Tags = []string{"benchmark"}
		}
		switch settings.Filter.RunIgnored {
		case RunIgnoredOnly:
			if !isIgnored {
				return
			}
		case RunIgnoredAll:
		default:
			tc.Ignored = isIgnored
		}
		tests = append(tests, tc)
	}
	for _, lt := range listed {
		add(lt, false)
	}
	for _, lt := range ignored {
		add(lt, true)
	}
	return tests, nil
}
