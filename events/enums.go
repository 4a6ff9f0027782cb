package events

// This file contains the string-encoded reporter surfaces: status display
// level and test output display mode. Unrecognized values are rejected
// with an error enumerating the valid set in sorted order.

import (
	"fmt"
	"sort"
	"strings"
)

// StatusLevel controls which per-test status lines a reporter shows.
type StatusLevel string

const (
	StatusLevelNone  StatusLevel = "none"
	StatusLevelFail  StatusLevel = "fail"
	StatusLevelRetry StatusLevel = "retry"
	StatusLevelPass  StatusLevel = "pass"
	StatusLevelSkip  StatusLevel = "skip"
	StatusLevelAll   StatusLevel = "all"
)

// statusLevelRanks orders levels by verbosity; a reporter configured at
// level L shows everything ranked at or below L's rank.
var statusLevelRanks = map[StatusLevel]int{
	StatusLevelNone:  0,
	StatusLevelFail:  1,
	StatusLevelRetry: 2,
	StatusLevelPass:  3,
	StatusLevelSkip:  4,
	StatusLevelAll:   5,
}

// Includes reports whether a line at level other is shown at level l.
func (l StatusLevel) Includes(other StatusLevel) bool {
	return statusLevelRanks[l] >= statusLevelRanks[other]
}

// StatusLevelParseError indicates an unrecognized status level string.
type StatusLevelParseError struct {
	Input string
}

func (e *StatusLevelParseError) Error() string {
	return fmt.Sprintf("unrecognized status level: %q (known values: %s)", e.Input, knownValues(statusLevelRanks))
}

// ParseStatusLevel parses a status level string.
func ParseStatusLevel(s string) (StatusLevel, error) {
	l := StatusLevel(s)
	if _, ok := statusLevelRanks[l]; !ok {
		return "", &StatusLevelParseError{Input: s}
	}
	return l, nil
}

// TestOutputDisplay controls when a reporter prints captured test output.
type TestOutputDisplay string

const (
	// OutputImmediate prints failing output as soon as the attempt ends.
	OutputImmediate TestOutputDisplay = "immediate"
	// OutputImmediateFinal prints failing output immediately and repeats
	// it after the run summary.
	OutputImmediateFinal TestOutputDisplay = "immediate-final"
	// OutputFinal prints failing output only after the run summary.
	OutputFinal TestOutputDisplay = "final"
	// OutputNever suppresses captured output.
	OutputNever TestOutputDisplay = "never"
)

var testOutputDisplays = map[TestOutputDisplay]struct{}{
	OutputImmediate:      {},
	OutputImmediateFinal: {},
	OutputFinal:          {},
	OutputNever:          {},
}

// ShowsImmediate reports whether failing output is printed as it happens.
func (d TestOutputDisplay) ShowsImmediate() bool {
	return d == OutputImmediate || d == OutputImmediateFinal
}

// ShowsFinal reports whether failing output is printed after the summary.
func (d TestOutputDisplay) ShowsFinal() bool {
	return d == OutputFinal || d == OutputImmediateFinal
}

// TestOutputDisplayParseError indicates an unrecognized output display
// string.
type TestOutputDisplayParseError struct {
	Input string
}

func (e *TestOutputDisplayParseError) Error() string {
	return fmt.Sprintf("unrecognized test output display: %q (known values: %s)", e.Input, knownValues(testOutputDisplays))
}

// ParseTestOutputDisplay parses a test output display string.
func ParseTestOutputDisplay(s string) (TestOutputDisplay, error) {
	d := TestOutputDisplay(s)
	if _, ok := testOutputDisplays[d]; !ok {
		return "", &TestOutputDisplayParseError{Input: s}
	}
	return d, nil
}

// knownValues renders a map's keys as a sorted, comma-separated list so
// error messages stay deterministic.
func knownValues[K ~string, V any](m map[K]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
