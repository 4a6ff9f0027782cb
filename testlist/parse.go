package testlist

// This file contains the parser for the terse list-mode output of test
// binaries: one "<name>: test" or "<name>: benchmark" line per test.

import (
	"bufio"
	"strings"
)

// listedTest is one entry of a binary's list-mode output.
type listedTest struct {
	Name      string
	Benchmark bool
}

// parseTerseOutput parses the captured list-mode output. Any non-blank
// line that does not follow the terse grammar is a hard parse failure;
// the caller attaches the command and full output for diagnosis.
func parseTerseOutput(output string) ([]listedTest, string, error) {
	var tests []listedTest
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, kind, ok := strings.Cut(line, ": ")
		if !ok || name == "" {
			return nil, line, errUnrecognizedLine
		}
		switch kind {
		case "test":
			tests = append(tests, listedTest{Name: name})
		case "benchmark":
			tests = append(tests, listedTest{Name: name, Benchmark: true})
		default:
			return nil, line, errUnrecognizedLine
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}
	return tests, "", nil
}

type terseParseError string

func (e terseParseError) Error() string { return string(e) }

const errUnrecognizedLine = terseParseError("unrecognized test list line")
