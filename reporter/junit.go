package reporter

// This file contains the JUnit XML writer: one testsuite per test binary,
// failing test cases carrying their captured output as CDATA.

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/Dzordzu/nextest/events"
)

type junitTestSuites struct {
	XMLName  xml.Name          `xml:"testsuites"`
	Name     string            `xml:"name,attr"`
	Tests    int               `xml:"tests,attr"`
	Failures int               `xml:"failures,attr"`
	Time     string            `xml:"time,attr"`
	Suites   []*junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Cases    []*junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string `xml:"name,attr"`
	ClassName string `xml:"classname,attr"`
	Timestamp string `xml:"timestamp,attr,omitempty"`
	Time      string `xml:"time,attr,omitempty"`

	Failure *junitFailure `xml:"failure,omitempty"`
	Skipped *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Details string `xml:",cdata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnitXML saves the run's finalized outcomes to path in JUnit XML
// format. Serialization and filesystem failures are reported distinctly;
// both identify the destination path and preserve the original cause.
func WriteJUnitXML(path, runID string, outcomes []*events.TestOutcome, elapsed time.Duration) error {
	doc := &junitTestSuites{
		Name: runID,
		Time: fmt.Sprintf("%.3f", elapsed.Seconds()),
	}
	suites := make(map[string]*junitTestSuite)
	for _, o := range outcomes {
		binaryID := o.Test.Binary.ID()
		suite, ok := suites[binaryID]
		if !ok {
			suite = &junitTestSuite{Name: binaryID}
			suites[binaryID] = suite
			doc.Suites = append(doc.Suites, suite)
		}

		tc := &junitTestCase{
			Name:      o.Test.Name,
			ClassName: o.Test.Binary.PackageName,
		}
		if t := o.Terminal(); t != nil {
			tc.Timestamp = t.StartTime.UTC().Format(time.RFC3339)
			// Decimal point distinguishes seconds from nanosecond
			// notation, e.g. "1.0".
			tc.Time = fmt.Sprintf("%.3f", t.Duration.Seconds())
		}

		switch o.Result {
		case events.FinalSkipped:
			tc.Skipped = &junitSkipped{Message: "test ignored"}
			suite.Skipped++
		case events.FinalNotRun:
			tc.Skipped = &junitSkipped{Message: "run cancelled before the test started"}
			suite.Skipped++
		case events.FinalPassed, events.FinalFlaky:
		default:
			failure := &junitFailure{
				Message: fmt.Sprintf("test %s", o.Result),
				Type:    string(o.Result),
			}
			if t := o.Terminal(); t != nil {
				failure.Details = string(t.Output)
				if t.Cause != "" {
					failure.Message = t.Cause
				}
			}
			tc.Failure = failure
			suite.Failures++
			doc.Failures++
		}
		suite.Tests++
		doc.Tests++
		suite.Cases = append(suite.Cases, tc)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &WriteEventError{Kind: WriteEventJunit, Path: path, Err: err}
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &WriteEventError{Kind: WriteEventFs, Path: path, Err: err}
	}
	return nil
}
