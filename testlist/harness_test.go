package testlist

// This file contains the fake test harness: when re-executed with
// NEXTEST_FAKE_HARNESS set, the test executable behaves like a test
// binary speaking the list-mode protocol, so list building can be tested
// against a real subprocess.

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	if os.Getenv("NEXTEST_FAKE_HARNESS") != "" {
		os.Exit(fakeHarnessMain())
	}
	os.Exit(m.Run())
}

func fakeHarnessMain() int {
	args := os.Args[1:]
	if len(args) == 0 || args[0] != "--list" {
		fmt.Fprintln(os.Stderr, "fake harness only supports list mode")
		return 2
	}
	if code := os.Getenv("NEXTEST_FAKE_LIST_EXIT"); code != "" {
		fmt.Fprintln(os.Stderr, "fake harness forced failure")
		return 3
	}

	lines := os.Getenv("NEXTEST_FAKE_LIST")
	if slices.Contains(args, "--ignored") {
		lines = os.Getenv("NEXTEST_FAKE_LIST_IGNORED")
	}
	if lines != "" {
		fmt.Println(strings.ReplaceAll(lines, ";", "\n"))
	}
	return 0
}

// fakeBinary points a TestBinary at the re-executed test executable.
func fakeBinary(t *testing.T, pkg string, kind BinaryKind) *TestBinary {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("cannot locate test executable: %v", err)
	}
	t.Setenv("NEXTEST_FAKE_HARNESS", "1")
	return &TestBinary{
		PackageID:   "id-" + pkg,
		PackageName: pkg,
		Kind:        kind,
		Path:        exe,
		Platform:    "x86_64-unknown-linux-gnu",
	}
}
