package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestCache_GetSetDeleteHas(t *testing.T) {
	r := NewRequestCache()
	assert.False(t, r.Has("k"))

	r.Set("k", 42)
	assert.True(t, r.Has("k"))
	v, ok := r.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	r.Delete("k")
	assert.False(t, r.Has("k"))
	_, ok = r.Get("k")
	assert.False(t, ok)
}

func TestRequestCache_IsolatedPerInstance(t *testing.T) {
	a := NewRequestCache()
	b := NewRequestCache()
	a.Set("k", 1)
	assert.False(t, b.Has("k"))
}
