package testlist

// This file contains test binary metadata: the binary kinds, the package
// graph the build step reports against, and ingestion of the build step's
// JSON message stream.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/Dzordzu/nextest/targetrunner"
)

// BinaryKind classifies a test binary.
type BinaryKind string

const (
	KindUnit        BinaryKind = "unit"
	KindIntegration BinaryKind = "integration"
	KindDoctest     BinaryKind = "doctest"
	KindBenchmark   BinaryKind = "benchmark"
)

var binaryKinds = map[string]BinaryKind{
	string(KindUnit):        KindUnit,
	string(KindIntegration): KindIntegration,
	string(KindDoctest):     KindDoctest,
	string(KindBenchmark):   KindBenchmark,
}

// BinaryKindParseError indicates an unrecognized binary kind string.
type BinaryKindParseError struct {
	Input string
}

func (e *BinaryKindParseError) Error() string {
	return fmt.Sprintf("unrecognized binary kind: %q (known values: %s)", e.Input, sortedKeys(binaryKinds))
}

// ParseBinaryKind parses a binary kind string.
func ParseBinaryKind(s string) (BinaryKind, error) {
	k, ok := binaryKinds[s]
	if !ok {
		return "", &BinaryKindParseError{Input: s}
	}
	return k, nil
}

// TestBinary identifies one compiled test artifact. Immutable once
// discovered.
type TestBinary struct {
	// PackageID is the build system's unique package identifier.
	PackageID string `json:"package_id"`
	// PackageName is the human-readable package name from the graph.
	PackageName string `json:"package_name"`
	Kind        BinaryKind `json:"kind"`
	// Path is the filesystem path to the binary.
	Path string `json:"path"`
	// Platform is the triple the binary was built for.
	Platform string `json:"platform"`
}

// ID uniquely identifies the binary within a run.
func (b *TestBinary) ID() string {
	return b.PackageName + "::" + string(b.Kind)
}

// Package is one node of the package graph.
type Package struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PackageGraph resolves package identifiers reported by the build step.
type PackageGraph struct {
	packages map[string]Package
}

// NewPackageGraph builds a graph from its packages.
func NewPackageGraph(packages []Package) *PackageGraph {
	g := &PackageGraph{packages: make(map[string]Package, len(packages))}
	for _, p := range packages {
		g.packages[p.ID] = p
	}
	return g
}

// LoadPackageGraph reads a package graph from a JSON file of the form
// {"packages": [{"id": ..., "name": ...}, ...]}.
func LoadPackageGraph(path string) (*PackageGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FromMessagesError{Cause: FromMessagesPackageGraph, Err: err}
	}
	var doc struct {
		Packages []Package `json:"packages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FromMessagesError{Cause: FromMessagesPackageGraph, Err: fmt.Errorf("%s: %w", path, err)}
	}
	return NewPackageGraph(doc.Packages), nil
}

// Package resolves a package ID.
func (g *PackageGraph) Package(id string) (Package, bool) {
	p, ok := g.packages[id]
	return p, ok
}

// message is one line of the build step's JSON message stream. Lines with
// other reasons are skipped.
type message struct {
	Reason    string `json:"reason"`
	PackageID string `json:"package_id"`
	Kind      string `json:"kind"`
	Path      string `json:"binary_path"`
	Target    string `json:"target,omitempty"`
}

// FromMessages ingests the build step's JSON-lines message stream and
// yields the test binaries it announced. Records without an explicit
// target are assigned defaultTriple. A nil graph resolves every package
// name to its ID. Read or decode failures and unknown package IDs surface
// as a single aggregate FromMessagesError naming whether I/O or graph
// querying was at fault.
func FromMessages(r io.Reader, graph *PackageGraph, defaultTriple string) ([]*TestBinary, error) {
	dec := json.NewDecoder(r)
	var binaries []*TestBinary
	for {
		var msg message
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &FromMessagesError{Cause: FromMessagesRead, Err: err}
		}
		if msg.Reason != "test-binary" {
			continue
		}
		pkg := Package{ID: msg.PackageID, Name: msg.PackageID}
		if graph != nil {
			var ok bool
			pkg, ok = graph.Package(msg.PackageID)
			if !ok {
				return nil, &FromMessagesError{
					Cause: FromMessagesPackageGraph,
					Err:   fmt.Errorf("unknown package ID %q", msg.PackageID),
				}
			}
		}
		kind, err := ParseBinaryKind(msg.Kind)
		if err != nil {
			return nil, &FromMessagesError{Cause: FromMessagesRead, Err: err}
		}
		if !utf8.ValidString(msg.Path) {
			return nil, &FromMessagesError{
				Cause: FromMessagesRead,
				Err:   &targetrunner.NonUTF8PathError{Path: msg.Path},
			}
		}
		triple := msg.Target
		if triple == "" {
			triple = defaultTriple
		}
		binaries = append(binaries, &TestBinary{
			PackageID:   msg.PackageID,
			PackageName: pkg.Name,
			Kind:        kind,
			Path:        msg.Path,
			Platform:    triple,
		})
	}
	return binaries, nil
}
