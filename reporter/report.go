package reporter

// This file contains the machine-readable JSON outcome report.

import (
	"encoding/json"
	"io"
	"time"

	"github.com/Dzordzu/nextest/events"
)

type reportEntry struct {
	Binary   string                  `json:"binary"`
	Name     string                  `json:"name"`
	Result   events.FinalResult      `json:"result"`
	Attempts []*events.ExecuteStatus `json:"attempts,omitempty"`
}

type report struct {
	RunID     string           `json:"run_id"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Stats     *events.RunStats `json:"stats"`
	Tests     []reportEntry    `json:"tests"`
}

// WriteReport serializes the final per-test outcome snapshot as JSON.
// Serialization failures and I/O failures are reported distinctly.
func WriteReport(w io.Writer, runID string, outcomes []*events.TestOutcome, stats *events.RunStats, elapsed time.Duration) error {
	doc := report{
		RunID:     runID,
		ElapsedMS: elapsed.Milliseconds(),
		Stats:     stats,
		Tests:     make([]reportEntry, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		doc.Tests = append(doc.Tests, reportEntry{
			Binary:   o.Test.Binary.ID(),
			Name:     o.Test.Name,
			Result:   o.Result,
			Attempts: o.Attempts,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &WriteReportError{Kind: WriteReportJson, Err: err}
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return &WriteReportError{Kind: WriteReportIo, Err: err}
	}
	return nil
}
