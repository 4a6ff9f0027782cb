package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	for _, tc := range []struct {
		spec    string
		wantErr string
	}{
		{spec: "0/1"},
		{spec: "1/3"},
		{spec: "hash:2/3"},
		{spec: "count:0/2"},
		{spec: "", wantErr: "missing shard-index/shard-count separator"},
		{spec: "1", wantErr: "missing shard-index/shard-count separator"},
		{spec: "x/3", wantErr: `shard index "x" is not a number`},
		{spec: "1/y", wantErr: `shard count "y" is not a number`},
		{spec: "0/0", wantErr: "shard count 0 must be at least 1"},
		{spec: "3/3", wantErr: "shard index 3 is out of range [0, 3)"},
		{spec: "-1/3", wantErr: "shard index -1 is out of range [0, 3)"},
		{spec: "alpha:0/3", wantErr: `unknown strategy "alpha"`},
	} {
		t.Run(tc.spec, func(t *testing.T) {
			b, err := ParseSpec(tc.spec)
			if tc.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, b.Build())
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
			require.Contains(t, err.Error(), ExpectedFormat)
			require.Contains(t, err.Error(), tc.spec)
		})
	}
}

func makeIdentities(n int) [][2]string {
	ids := make([][2]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, [2]string{"demo::unit", fmt.Sprintf("test_%02d", i)})
	}
	return ids
}

// Every identity must land in exactly one shard: union is the whole set,
// shards are pairwise disjoint.
func TestHashTotalityAndDisjointness(t *testing.T) {
	ids := makeIdentities(9)
	counts := make(map[[2]string]int)
	for shard := 0; shard < 3; shard++ {
		p, err := ParseSpec(fmt.Sprintf("%d/3", shard))
		require.NoError(t, err)
		part := p.Build()
		for _, id := range ids {
			if part.Include(id[0], id[1]) {
				counts[id]++
			}
		}
	}
	for _, id := range ids {
		require.Equal(t, 1, counts[id], "identity %v", id)
	}
}

func TestHashDeterminism(t *testing.T) {
	ids := makeIdentities(50)
	b1, err := ParseSpec("hash:1/4")
	require.NoError(t, err)
	b2, err := ParseSpec("hash:1/4")
	require.NoError(t, err)

	// Two independent partitioners must agree on every identity, and
	// repeated evaluation must be stable.
	p1, p2 := b1.Build(), b2.Build()
	for _, id := range ids {
		first := p1.Include(id[0], id[1])
		require.Equal(t, first, p2.Include(id[0], id[1]))
		require.Equal(t, first, p1.Include(id[0], id[1]))
	}
}

func TestCountBalancePerBinary(t *testing.T) {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("test_%02d", i)
	}

	// Offering two binaries' tests in deterministic order, each shard
	// gets a per-binary share differing by at most one.
	sizes := make(map[int]map[string]int)
	total := 0
	for shard := 0; shard < 3; shard++ {
		b, err := ParseSpec(fmt.Sprintf("count:%d/3", shard))
		require.NoError(t, err)
		part := b.Build()
		sizes[shard] = make(map[string]int)
		for _, binary := range []string{"alpha::unit", "beta::integration"} {
			for _, name := range names {
				if part.Include(binary, name) {
					sizes[shard][binary]++
					total++
				}
			}
		}
	}
	require.Equal(t, 20, total)
	for shard, byBinary := range sizes {
		for binary, n := range byBinary {
			require.InDelta(t, 10.0/3.0, float64(n), 1.0, "shard %d binary %s", shard, binary)
		}
	}
}

func TestCountCycleRestartsPerBinary(t *testing.T) {
	b, err := ParseSpec("count:0/2")
	require.NoError(t, err)
	part := b.Build()

	// First test of every binary lands in shard 0.
	require.True(t, part.Include("alpha::unit", "t1"))
	require.False(t, part.Include("alpha::unit", "t2"))
	require.True(t, part.Include("beta::unit", "t1"))
}

func TestBareSpecIsHashBased(t *testing.T) {
	bare, err := ParseSpec("1/3")
	require.NoError(t, err)
	hash, err := ParseSpec("hash:1/3")
	require.NoError(t, err)

	p1, p2 := bare.Build(), hash.Build()
	for _, id := range makeIdentities(20) {
		require.Equal(t, p2.Include(id[0], id[1]), p1.Include(id[0], id[1]))
	}
}
