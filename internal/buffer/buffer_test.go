package buffer_test

import (
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
	"github.com/stealthrocket/cloak/internal/buffer"
)

func TestAlign(t *testing.T) {
	for _, test := range []struct{ size, align uint64 }{
		{0, 4096},
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
		{32 * 1024, 32 * 1024},
	} {
		assert.Equal(t, buffer.Align(test.size, buffer.Alignment), test.align)
	}
}

func TestPool(t *testing.T) {
	var pool buffer.Pool

	b := pool.Get(100)
	assert.Equal(t, b.Size(), 100)
	assert.Equal(t, cap(b.Data), buffer.Alignment)
	assert.Equal(t, pool.Live(), 1)

	c := pool.Get(10000)
	assert.Equal(t, c.Size(), 10000)
	assert.Equal(t, pool.Live(), 2)

	buffer.Release(&b, &pool)
	assert.True(t, b == nil, "the released reference was not cleared")
	buffer.Release(&b, &pool)
	assert.Equal(t, pool.Live(), 1)

	buffer.Release(&c, &pool)
	assert.Equal(t, pool.Live(), 0)
}
