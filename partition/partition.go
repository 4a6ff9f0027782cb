// Package partition implements deterministic test sharding. A partition
// spec names one shard out of n; evaluating the same spec against the same
// test identity always yields the same membership, in-process and across
// machines, so independently invoked shards jointly cover the full test
// set with no overlaps and no gaps.
package partition

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ExpectedFormat describes the accepted spec grammar, used in parse errors.
const ExpectedFormat = "shard-index/shard-count, hash:shard-index/shard-count or count:shard-index/shard-count"

// SpecParseError indicates a malformed partition spec. A malformed spec
// never degrades to "include everything" or "include nothing".
type SpecParseError struct {
	Input   string
	Message string
}

func (e *SpecParseError) Error() string {
	return fmt.Sprintf("invalid partition spec %q: %s (expected %s)", e.Input, e.Message, ExpectedFormat)
}

type kind uint8

const (
	kindHash kind = iota
	kindCount
)

// Builder is a validated partition spec. Build produces a fresh
// Partitioner; count-based partitioners carry per-binary cursors, so one
// Partitioner must not be shared across independent evaluations.
type Builder struct {
	kind  kind
	index int
	total int
}

// Partitioner decides shard membership for one test identity.
//
// Hash partitioners are pure functions of the identity. Count partitioners
// are positional: membership depends on the order tests are offered, which
// is deterministic because TestList iteration order is deterministic.
type Partitioner interface {
	Include(binaryID, testName string) bool
}

// ParseSpec parses a partition spec. The bare form "i/n" is hash-based.
func ParseSpec(s string) (*Builder, error) {
	rest := s
	k := kindHash
	if strategy, suffix, ok := strings.Cut(s, ":"); ok {
		switch strategy {
		case "hash":
			k = kindHash
		case "count":
			k = kindCount
		default:
			return nil, &SpecParseError{Input: s, Message: fmt.Sprintf("unknown strategy %q", strategy)}
		}
		rest = suffix
	}

	indexStr, totalStr, ok := strings.Cut(rest, "/")
	if !ok {
		return nil, &SpecParseError{Input: s, Message: "missing shard-index/shard-count separator"}
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return nil, &SpecParseError{Input: s, Message: fmt.Sprintf("shard index %q is not a number", indexStr)}
	}
	total, err := strconv.Atoi(totalStr)
	if err != nil {
		return nil, &SpecParseError{Input: s, Message: fmt.Sprintf("shard count %q is not a number", totalStr)}
	}
	if total < 1 {
		return nil, &SpecParseError{Input: s, Message: fmt.Sprintf("shard count %d must be at least 1", total)}
	}
	if index < 0 || index >= total {
		return nil, &SpecParseError{Input: s, Message: fmt.Sprintf("shard index %d is out of range [0, %d)", index, total)}
	}
	return &Builder{kind: k, index: index, total: total}, nil
}

// Build constructs a Partitioner for one evaluation pass.
func (b *Builder) Build() Partitioner {
	switch b.kind {
	case kindCount:
		return &countPartitioner{index: b.index, total: b.total, cursors: make(map[string]int)}
	default:
		return &hashPartitioner{index: b.index, total: b.total}
	}
}

// hashPartitioner includes a test iff
// sha256(binaryID || NUL || testName) mod total == index.
type hashPartitioner struct {
	index int
	total int
}

func (p *hashPartitioner) Include(binaryID, testName string) bool {
	h := sha256.New()
	h.Write([]byte(binaryID))
	h.Write([]byte{0})
	h.Write([]byte(testName))

	shaInt := new(big.Int)
	shaInt.SetBytes(h.Sum(nil))
	shaInt.Mod(shaInt, big.NewInt(int64(p.total)))
	return int(shaInt.Int64()) == p.index
}

// countPartitioner deals tests round-robin. The cycle restarts per binary
// so every binary's tests spread over all shards; shard sizes per binary
// differ by at most one.
type countPartitioner struct {
	index   int
	total   int
	cursors map[string]int
}

func (p *countPartitioner) Include(binaryID, testName string) bool {
	cursor := p.cursors[binaryID]
	p.cursors[binaryID] = cursor + 1
	return cursor%p.total == p.index
}
