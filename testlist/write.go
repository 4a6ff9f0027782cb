package testlist

// This file contains human-readable and JSON serialization of a test
// list.

import (
	"encoding/json"
	"fmt"
	"io"
)

type jsonBinary struct {
	*TestBinary
	Tests []TestCase `json:"tests"`
}

type jsonList struct {
	TestCount int          `json:"test_count"`
	Binaries  []jsonBinary `json:"binaries"`
}

// WriteHuman renders the list as indented text, one binary per block.
func (l *TestList) WriteHuman(w io.Writer) error {
	for _, bl := range l.Binaries {
		if _, err := fmt.Fprintf(w, "%s:\n", bl.Binary.ID()); err != nil {
			return &WriteTestListError{Kind: WriteTestListIo, Err: err}
		}
		for _, tc := range bl.Tests {
			suffix := ""
			if tc.Ignored {
				suffix = " (skipped)"
			}
			if _, err := fmt.Fprintf(w, "    %s%s\n", tc.Name, suffix); err != nil {
				return &WriteTestListError{Kind: WriteTestListIo, Err: err}
			}
		}
	}
	return nil
}

// WriteJSON serializes the list snapshot. Serialization failures and I/O
// failures are reported distinctly.
func (l *TestList) WriteJSON(w io.Writer, pretty bool) error {
	doc := jsonList{TestCount: l.total}
	for _, bl := range l.Binaries {
		tests := bl.Tests
		if tests == nil {
			tests = []TestCase{}
		}
		doc.Binaries = append(doc.Binaries, jsonBinary{TestBinary: bl.Binary, Tests: tests})
	}

	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return &WriteTestListError{Kind: WriteTestListJson, Err: err}
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return &WriteTestListError{Kind: WriteTestListIo, Err: err}
	}
	return nil
}
