package testlist

// This file contains the closed error set for test list construction.
// Discovery failures are fatal to the run as a whole; any binary failing
// fails the stage with per-binary detail attached.

import (
	"fmt"
	"sort"
	"strings"
)

// FromMessagesCause distinguishes the two ways build metadata ingestion
// can fail.
type FromMessagesCause string

const (
	// FromMessagesRead: the message stream could not be read or decoded.
	FromMessagesRead FromMessagesCause = "reading Cargo messages"
	// FromMessagesPackageGraph: a message referenced a package the graph
	// does not know.
	FromMessagesPackageGraph FromMessagesCause = "querying package graph"
)

// FromMessagesError is the aggregate failure for build metadata ingestion.
type FromMessagesError struct {
	Cause FromMessagesCause
	Err   error
}

func (e *FromMessagesError) Error() string {
	return fmt.Sprintf("error %s: %v", e.Cause, e.Err)
}

func (e *FromMessagesError) Unwrap() error { return e.Err }

// ParseTestListError indicates a failure to obtain or understand one
// binary's test list. The command and parse variants are mutually
// exclusive per binary.
type ParseTestListError struct {
	// Command is the shell-quoted invocation that was attempted.
	Command string
	// Line is the unrecognized line; empty for launch failures.
	Line string
	// FullOutput retains the complete captured output for parse failures.
	// Parse failures are rare and need full context to debug.
	FullOutput string
	Err        error
}

func (e *ParseTestListError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("error parsing line %q in test list output of '%s'\nfull output:\n%s", e.Line, e.Command, e.FullOutput)
	}
	return fmt.Sprintf("running '%s' failed: %v", e.Command, e.Err)
}

func (e *ParseTestListError) Unwrap() error { return e.Err }

// DuplicateTestError indicates two discovered tests sharing the same
// (binary, name) identity.
type DuplicateTestError struct {
	BinaryID string
	Name     string
}

func (e *DuplicateTestError) Error() string {
	return fmt.Sprintf("duplicate test %q in binary %s", e.Name, e.BinaryID)
}

// WriteTestListKind distinguishes I/O from serialization failures when
// writing a test list.
type WriteTestListKind string

const (
	WriteTestListIo   WriteTestListKind = "io"
	WriteTestListJson WriteTestListKind = "json"
)

// WriteTestListError indicates a failure to serialize or write a list.
type WriteTestListError struct {
	Kind WriteTestListKind
	Err  error
}

func (e *WriteTestListError) Error() string {
	switch e.Kind {
	case WriteTestListJson:
		return fmt.Sprintf("error serializing test list to JSON: %v", e.Err)
	default:
		return fmt.Sprintf("error writing test list: %v", e.Err)
	}
}

func (e *WriteTestListError) Unwrap() error { return e.Err }

// sortedKeys renders map keys as a sorted comma-separated list for
// deterministic error messages.
func sortedKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
