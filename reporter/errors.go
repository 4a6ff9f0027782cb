package reporter

// This file contains the closed error set for reporters. Reporting
// failures never alter computed outcomes, but they do fail the process.

import "fmt"

// WriteEventKind distinguishes JUnit serialization failures from
// filesystem failures.
type WriteEventKind string

const (
	WriteEventJunit WriteEventKind = "junit"
	WriteEventFs    WriteEventKind = "fs"
)

// WriteEventError indicates a failure to produce the JUnit report. The
// destination path is always identified.
type WriteEventError struct {
	Kind WriteEventKind
	Path string
	Err  error
}

func (e *WriteEventError) Error() string {
	switch e.Kind {
	case WriteEventJunit:
		return fmt.Sprintf("error serializing JUnit report to %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("error writing JUnit report to %s: %v", e.Path, e.Err)
	}
}

func (e *WriteEventError) Unwrap() error { return e.Err }

// WriteReportKind distinguishes I/O from serialization failures for the
// JSON outcome report.
type WriteReportKind string

const (
	WriteReportIo   WriteReportKind = "io"
	WriteReportJson WriteReportKind = "json"
)

// WriteReportError indicates a failure to write the JSON outcome report.
type WriteReportError struct {
	Kind WriteReportKind
	Err  error
}

func (e *WriteReportError) Error() string {
	switch e.Kind {
	case WriteReportJson:
		return fmt.Sprintf("error serializing outcome report: %v", e.Err)
	default:
		return fmt.Sprintf("error writing outcome report: %v", e.Err)
	}
}

func (e *WriteReportError) Unwrap() error { return e.Err }
