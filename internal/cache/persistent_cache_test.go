package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blob struct{ n int }

func (b blob) SizeBytes() int { return b.n }

func TestNamedCache_SetGet(t *testing.T) {
	c := NewNamedCache("ast", 1024, time.Hour, false)
	require.True(t, c.Set("k", blob{10}, 0, nil))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, blob{10}, v)

	v2, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, v, v2)
}

func TestNamedCache_RejectsOversizeEntry(t *testing.T) {
	c := NewNamedCache("ast", 100, time.Hour, false)
	ok := c.Set("k", blob{200}, 0, nil)
	assert.False(t, ok)
	_, found := c.Get("k")
	assert.False(t, found)
}

func TestNamedCache_EvictsLRUUnderPressure(t *testing.T) {
	// budget 1024, three 500-byte entries A, B, C inserted in that order,
	// then get(A), then insert D (500 bytes) -> residents {A, C, D}, B
	// evicted as LRU.
	c := NewNamedCache("ast", 1024, time.Hour, false)
	require.True(t, c.Set("A", blob{500}, 0, nil))
	require.True(t, c.Set("B", blob{500}, 0, nil))
	require.True(t, c.Set("C", blob{500}, 0, nil))
	// A, B, C together (1500 bytes) fit within budget + one entry's worth
	// of tolerance (1024 + 500 = 1524), so no eviction has happened yet.
	_, hasAEarly := c.Get("A")
	require.True(t, hasAEarly)

	require.True(t, c.Set("D", blob{500}, 0, nil))

	_, hasA := c.Get("A")
	_, hasB := c.Get("B")
	_, hasC := c.Get("C")
	_, hasD := c.Get("D")
	assert.False(t, hasB, "B should have been evicted as least-recently-used")
	assert.True(t, hasA)
	assert.True(t, hasC)
	assert.True(t, hasD)
}

func TestNamedCache_TTLExpiry(t *testing.T) {
	c := NewNamedCache("ast", 1024, time.Millisecond, false)
	require.True(t, c.Set("k", blob{1}, 0, nil))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestNamedCache_TransitiveInvalidation(t *testing.T) {
	// Scenario 5: E1 depends on D, E2 depends on E1; invalidate(D) ->
	// both E1 and E2 miss.
	c := NewNamedCache("pattern", 4096, time.Hour, false)
	require.True(t, c.Set("D", blob{10}, 0, nil))
	require.True(t, c.Set("E1", blob{10}, 0, []string{"D"}))
	require.True(t, c.Set("E2", blob{10}, 0, []string{"E1"}))

	c.Invalidate("D")

	_, ok1 := c.Get("E1")
	_, ok2 := c.Get("E2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestNamedCache_InvalidateMatchingPrefix(t *testing.T) {
	c := NewNamedCache("ast", 4096, time.Hour, false)
	require.True(t, c.Set("foo/a", blob{1}, 0, nil))
	require.True(t, c.Set("foo/b", blob{1}, 0, nil))
	require.True(t, c.Set("bar/a", blob{1}, 0, nil))

	c.InvalidateMatching("foo/")

	_, ok1 := c.Get("foo/a")
	_, ok2 := c.Get("foo/b")
	_, ok3 := c.Get("bar/a")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestCoordinator_InvalidatePrefixAcrossCaches(t *testing.T) {
	co := NewCoordinator(4096, 4096, 4096, time.Hour)
	ast, _ := co.Cache("ast")
	pattern, _ := co.Cache("pattern")
	require.True(t, ast.Set("file.go:tree", blob{1}, 0, nil))
	require.True(t, pattern.Set("file.go:pattern", blob{1}, 0, nil))

	co.InvalidatePrefix("file.go:")

	_, ok1 := ast.Get("file.go:tree")
	_, ok2 := pattern.Get("file.go:pattern")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestCoordinator_Stats(t *testing.T) {
	co := NewCoordinator(4096, 4096, 4096, time.Hour)
	ast, _ := co.Cache("ast")
	require.True(t, ast.Set("k", blob{1}, 0, nil))
	_, _ = ast.Get("k")
	_, _ = ast.Get("missing")

	stats := co.Stats()
	require.Contains(t, stats, "ast")
	assert.Equal(t, int64(1), stats["ast"].Hits)
	assert.Equal(t, int64(1), stats["ast"].Misses)
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	assert.Equal(t, a, b)
}
