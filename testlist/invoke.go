package testlist

// This file contains the list-mode invocation of a test binary: run it
// (through the target runner wrapper if present), capture stdout, and
// parse the terse output.

import (
	"bytes"
	"context"
	"os/exec"

	"al.essio.dev/pkg/shellescape"

	"github.com/Dzordzu/nextest/targetrunner"
)

// runListMode executes one list-mode pass of a binary and parses its
// output. Launch failures and parse failures both surface as
// ParseTestListError, but are mutually exclusive: a launch failure carries
// the command and cause, a parse failure carries the offending line and
// the full captured output.
func runListMode(ctx context.Context, bin *TestBinary, runner *targetrunner.TargetRunner, ignored bool) ([]listedTest, error) {
	argv := []string{bin.Path, "--list", "--format", "terse"}
	if ignored {
		argv = []string{bin.Path, "--list", "--ignored", "--format", "terse"}
	}
	argv = runner.Wrap(argv)
	command := shellescape.QuoteCommand(argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ParseTestListError{Command: command, Err: err}
	}

	tests, badLine, err := parseTerseOutput(stdout.String())
	if err != nil {
		return nil, &ParseTestListError{
			Command:    command,
			Line:       badLine,
			FullOutput: stdout.String(),
			Err:        err,
		}
	}
	return tests, nil
}
