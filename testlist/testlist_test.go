package testlist

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Dzordzu/nextest/targetrunner"
)

func noRunner(*TestBinary) *targetrunner.TargetRunner { return nil }

func TestNewBuildsSortedList(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST", "tests::zeta: test;tests::alpha: test;benches::sort: benchmark")
	t.Setenv("NEXTEST_FAKE_LIST_IGNORED", "tests::slow_io: test")

	list, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Equal(t, 4, list.Len())
	require.Len(t, list.Binaries, 1)

	names := make([]string, 0, 4)
	for _, tc := range list.TestCases() {
		names = append(names, tc.Name)
	}
	require.Equal(t, []string{"benches::sort", "tests::alpha", "tests::slow_io", "tests::zeta"}, names)

	byName := make(map[string]TestCase)
	for _, tc := range list.TestCases() {
		byName[tc.Name] = tc
	}
	require.True(t, byName["tests::slow_io"].Ignored)
	require.False(t, byName["tests::alpha"].Ignored)
	require.Equal(t, []string{"benchmark"}, byName["benches::sort"].Tags)
}

func TestNewAppliesNamePatterns(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST", "tests::alpha: test;tests::beta: test;other::gamma: test")
	t.Setenv("NEXTEST_FAKE_LIST_IGNORED", "")

	list, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{
		Filter: TestFilter{Patterns: []string{"tests::"}},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
}

func TestNewRunIgnoredModes(t *testing.T) {
	t.Setenv("NEXTEST_FAKE_LIST", "normal: test")
	t.Setenv("NEXTEST_FAKE_LIST_IGNORED", "flagged: test")

	for _, tc := range []struct {
		mode        RunIgnoredMode
		wantNames   []string
		wantIgnored map[string]bool
	}{
		{
			mode:        RunIgnoredDefault,
			wantNames:   []string{"flagged", "normal"},
			wantIgnored: map[string]bool{"flagged": true, "normal": false},
		},
		{
			mode:        RunIgnoredAll,
			wantNames:   []string{"flagged", "normal"},
			wantIgnored: map[string]bool{"flagged": false, "normal": false},
		},
		{
			mode:        RunIgnoredOnly,
			wantNames:   []string{"flagged"},
			wantIgnored: map[string]bool{"flagged": false},
		},
	} {
		t.Run(string(tc.mode), func(t *testing.T) {
			bin := fakeBinary(t, "demo", KindUnit)
			list, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{
				Filter: TestFilter{RunIgnored: tc.mode},
				Logger: zerolog.Nop(),
			})
			require.NoError(t, err)

			var names []string
			for _, c := range list.TestCases() {
				names = append(names, c.Name)
				require.Equal(t, tc.wantIgnored[c.Name], c.Ignored, "test %s", c.Name)
			}
			require.Equal(t, tc.wantNames, names)
		})
	}
}

func TestNewLaunchFailure(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST_EXIT", "3")

	_, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{Logger: zerolog.Nop()})
	var parseErr *ParseTestListError
	require.ErrorAs(t, err, &parseErr)
	require.Empty(t, parseErr.Line, "launch failure must not be a parse failure")
	require.Contains(t, err.Error(), "demo::unit")
}

func TestNewParseFailureRetainsOutput(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST", "good: test;what is this line")

	_, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{Logger: zerolog.Nop()})
	var parseErr *ParseTestListError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "what is this line", parseErr.Line)
	require.Contains(t, parseErr.FullOutput, "good: test")
}

func TestNewDuplicateTest(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST", "same: test")
	t.Setenv("NEXTEST_FAKE_LIST_IGNORED", "same: test")

	_, err := New(context.Background(), []*TestBinary{bin}, noRunner, ListSettings{Logger: zerolog.Nop()})
	var dup *DuplicateTestError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "same", dup.Name)
	require.Equal(t, "demo::unit", dup.BinaryID)
}

// Listing through a target runner wrapper: env(1) execs the binary, so
// the wrapped invocation behaves identically.
func TestNewThroughTargetRunner(t *testing.T) {
	bin := fakeBinary(t, "demo", KindUnit)
	t.Setenv("NEXTEST_FAKE_LIST", "wrapped: test")
	t.Setenv("NEXTEST_FAKE_LIST_IGNORED", "")

	wrapper := &targetrunner.TargetRunner{Binary: "env", Source: "test"}
	list, err := New(context.Background(), []*TestBinary{bin}, func(*TestBinary) *targetrunner.TargetRunner {
		return wrapper
	}, ListSettings{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
}

func TestFilterDerivesNewList(t *testing.T) {
	bin := &TestBinary{PackageID: "id-demo", PackageName: "demo", Kind: KindUnit, Path: "/bin/demo", Platform: "t-t-t"}
	list, err := Assemble([]TestCase{
		{Binary: bin, Name: "a"},
		{Binary: bin, Name: "b"},
		{Binary: bin, Name: "c"},
	})
	require.NoError(t, err)

	derived := list.Filter(func(tc TestCase) bool { return tc.Name != "b" })
	require.Equal(t, 2, derived.Len())
	require.Equal(t, 3, list.Len(), "source list must not be mutated")
}

func TestFromMessages(t *testing.T) {
	graph := NewPackageGraph([]Package{{ID: "demo 0.1.0 (path+file:///work/demo)", Name: "demo"}})
	stream := strings.Join([]string{
		`{"reason":"build-started"}`,
		`{"reason":"test-binary","package_id":"demo 0.1.0 (path+file:///work/demo)","kind":"unit","binary_path":"/work/target/debug/demo-1234"}`,
		`{"reason":"test-binary","package_id":"demo 0.1.0 (path+file:///work/demo)","kind":"integration","binary_path":"/work/target/debug/it-5678","target":"aarch64-unknown-linux-gnu"}`,
		`{"reason":"build-finished"}`,
	}, "\n")

	binaries, err := FromMessages(strings.NewReader(stream), graph, "x86_64-unknown-linux-gnu")
	require.NoError(t, err)
	require.Len(t, binaries, 2)
	require.Equal(t, "demo", binaries[0].PackageName)
	require.Equal(t, "demo::unit", binaries[0].ID())
	require.Equal(t, "x86_64-unknown-linux-gnu", binaries[0].Platform)
	require.Equal(t, "aarch64-unknown-linux-gnu", binaries[1].Platform)
}

func TestFromMessagesUnknownPackage(t *testing.T) {
	graph := NewPackageGraph(nil)
	stream := `{"reason":"test-binary","package_id":"ghost","kind":"unit","binary_path":"/x"}`

	_, err := FromMessages(strings.NewReader(stream), graph, "t")
	var fromErr *FromMessagesError
	require.ErrorAs(t, err, &fromErr)
	require.Equal(t, FromMessagesPackageGraph, fromErr.Cause)
	require.Contains(t, err.Error(), "ghost")
}

func TestFromMessagesReadFailure(t *testing.T) {
	_, err := FromMessages(strings.NewReader("{not json"), nil, "t")
	var fromErr *FromMessagesError
	require.ErrorAs(t, err, &fromErr)
	require.Equal(t, FromMessagesRead, fromErr.Cause)
}

func TestFromMessagesBadKind(t *testing.T) {
	stream := `{"reason":"test-binary","package_id":"p","kind":"fuzz","binary_path":"/x"}`
	_, err := FromMessages(strings.NewReader(stream), nil, "t")
	var kindErr *BinaryKindParseError
	require.ErrorAs(t, err, &kindErr)
	require.Equal(t, `unrecognized binary kind: "fuzz" (known values: benchmark, doctest, integration, unit)`, kindErr.Error())
}

func TestLoadPackageGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"packages":[{"id":"pid","name":"pname"}]}`), 0o644))

	graph, err := LoadPackageGraph(path)
	require.NoError(t, err)
	pkg, ok := graph.Package("pid")
	require.True(t, ok)
	require.Equal(t, "pname", pkg.Name)

	_, err = LoadPackageGraph(filepath.Join(t.TempDir(), "missing.json"))
	var fromErr *FromMessagesError
	require.ErrorAs(t, err, &fromErr)
	require.Equal(t, FromMessagesPackageGraph, fromErr.Cause)
}

func TestParseRunIgnoredMode(t *testing.T) {
	for _, valid := range []string{"default", "ignored-only", "all"} {
		mode, err := ParseRunIgnoredMode(valid)
		require.NoError(t, err)
		require.Equal(t, RunIgnoredMode(valid), mode)
	}

	_, err := ParseRunIgnoredMode("sometimes")
	require.Error(t, err)
	require.Equal(t, `unrecognized run-ignored mode: "sometimes" (known values: all, default, ignored-only)`, err.Error())
}

func TestWriteJSON(t *testing.T) {
	bin := &TestBinary{PackageID: "id-demo", PackageName: "demo", Kind: KindUnit, Path: "/bin/demo", Platform: "x86_64-unknown-linux-gnu"}
	list, err := Assemble([]TestCase{
		{Binary: bin, Name: "a"},
		{Binary: bin, Name: "b", Ignored: true},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, list.WriteJSON(&buf, true))

	var doc struct {
		TestCount int `json:"test_count"`
		Binaries  []struct {
			PackageName string `json:"package_name"`
			Tests       []struct {
				Name    string `json:"name"`
				Ignored bool   `json:"ignored"`
			} `json:"tests"`
		} `json:"binaries"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, 2, doc.TestCount)
	require.Len(t, doc.Binaries, 1)
	require.Equal(t, "demo", doc.Binaries[0].PackageName)
	require.True(t, doc.Binaries[0].Tests[1].Ignored)
}

func TestWriteHuman(t *testing.T) {
	bin := &TestBinary{PackageID: "id-demo", PackageName: "demo", Kind: KindUnit, Path: "/bin/demo", Platform: "t-t-t"}
	list, err := Assemble([]TestCase{
		{Binary: bin, Name: "a"},
		{Binary: bin, Name: "b", Ignored: true},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, list.WriteHuman(&buf))
	require.Equal(t, "demo::unit:\n    a\n    b (skipped)\n", buf.String())
}
