package reporter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dzordzu/nextest/events"
	"github.com/Dzordzu/nextest/testlist"
)

func TestWriteJUnitXML(t *testing.T) {
	otherBinary := &testlist.TestBinary{
		PackageID:   "id-other",
		PackageName: "other",
		Kind:        testlist.KindIntegration,
		Path:        "/bin/other",
		Platform:    "x86_64-unknown-linux-gnu",
	}
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	outcomes := []*events.TestOutcome{
		passedOutcome("ok_one", ""),
		{
			Test:   demoCase("bad_one"),
			Result: events.FinalFailed,
			Attempts: []*events.ExecuteStatus{
				{Attempt: 1, StartTime: started, Duration: 250 * time.Millisecond, ExitCode: 1,
					Result: events.ResultFail, Output: []byte("thread panicked at src/lib.rs:10\n")},
			},
		},
		{Test: demoCase("ignored_one"), Result: events.FinalSkipped},
		{Test: demoCase("unreached_one"), Result: events.FinalNotRun},
		{
			Test:   testlist.TestCase{Binary: otherBinary, Name: "stuck_one"},
			Result: events.FinalTimedOut,
			Attempts: []*events.ExecuteStatus{
				{Attempt: 1, StartTime: started, Duration: time.Minute, ExitCode: -1,
					Result: events.ResultTimeout, Cause: "test exceeded timeout of 1m0s"},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, WriteJUnitXML(path, "run-1", outcomes, 3*time.Second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte(xml.Header)))

	var doc junitTestSuites
	require.NoError(t, xml.Unmarshal(data, &doc))
	require.Equal(t, "run-1", doc.Name)
	require.Equal(t, 5, doc.Tests)
	require.Equal(t, 2, doc.Failures)
	require.Equal(t, "3.000", doc.Time)
	require.Len(t, doc.Suites, 2)

	demo := doc.Suites[0]
	require.Equal(t, "demo::unit", demo.Name)
	require.Equal(t, 4, demo.Tests)
	require.Equal(t, 1, demo.Failures)
	require.Equal(t, 2, demo.Skipped)

	byName := make(map[string]*junitTestCase)
	for _, c := range demo.Cases {
		byName[c.Name] = c
	}
	require.Nil(t, byName["ok_one"].Failure)
	require.NotNil(t, byName["bad_one"].Failure)
	require.Equal(t, "test failed", byName["bad_one"].Failure.Message)
	require.Equal(t, "failed", byName["bad_one"].Failure.Type)
	require.Contains(t, byName["bad_one"].Failure.Details, "thread panicked at src/lib.rs:10")
	require.Equal(t, "2026-08-30T12:00:00Z", byName["bad_one"].Timestamp)
	require.Equal(t, "0.250", byName["bad_one"].Time)
	require.NotNil(t, byName["ignored_one"].Skipped)
	require.Equal(t, "test ignored", byName["ignored_one"].Skipped.Message)
	require.NotNil(t, byName["unreached_one"].Skipped)

	other := doc.Suites[1]
	require.Equal(t, "other::integration", other.Name)
	require.Equal(t, "test exceeded timeout of 1m0s", other.Cases[0].Failure.Message)
	require.Equal(t, "timed-out", other.Cases[0].Failure.Type)
}

func TestWriteJUnitXMLFsError(t *testing.T) {
	err := WriteJUnitXML(filepath.Join(t.TempDir(), "no", "such", "dir", "junit.xml"), "run-1", nil, 0)
	var writeErr *WriteEventError
	require.ErrorAs(t, err, &writeErr)
	require.Equal(t, WriteEventFs, writeErr.Kind)
	require.Contains(t, err.Error(), "junit.xml")
	require.NotNil(t, errors.Unwrap(err))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestWriteReport(t *testing.T) {
	outcomes := []*events.TestOutcome{
		passedOutcome("ok_one", ""),
		failedOutcome("bad_one", "boom\n"),
	}
	stats := &events.RunStats{Initial: 2}
	for _, o := range outcomes {
		stats.Record(o)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, "run-1", outcomes, stats, 2500*time.Millisecond))

	var doc struct {
		RunID     string `json:"run_id"`
		ElapsedMS int64  `json:"elapsed_ms"`
		Stats     struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"stats"`
		Tests []struct {
			Binary   string `json:"binary"`
			Name     string `json:"name"`
			Result   string `json:"result"`
			Attempts []struct {
				Attempt  int    `json:"attempt"`
				ExitCode int    `json:"exit_code"`
				Result   string `json:"result"`
			} `json:"attempts"`
		} `json:"tests"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "run-1", doc.RunID)
	require.Equal(t, int64(2500), doc.ElapsedMS)
	require.Equal(t, 1, doc.Stats.Passed)
	require.Equal(t, 1, doc.Stats.Failed)
	require.Len(t, doc.Tests, 2)
	require.Equal(t, "demo::unit", doc.Tests[1].Binary)
	require.Equal(t, "bad_one", doc.Tests[1].Name)
	require.Equal(t, "failed", doc.Tests[1].Result)
	require.Equal(t, 1, doc.Tests[1].Attempts[0].ExitCode)

	// Captured output stays out of the machine report.
	require.NotContains(t, buf.String(), "boom")
}

func TestWriteReportIoError(t *testing.T) {
	err := WriteReport(failingWriter{}, "run-1", nil, &events.RunStats{}, 0)
	var writeErr *WriteReportError
	require.ErrorAs(t, err, &writeErr)
	require.Equal(t, WriteReportIo, writeErr.Kind)
	require.Contains(t, err.Error(), "pipe closed")
}
