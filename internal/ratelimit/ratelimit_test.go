package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowConsumesTokensThenBlocks(t *testing.T) {
	l := New(2)

	assert.True(t, l.Allow("A::a1"))
	assert.True(t, l.Allow("A::a1"))
	assert.False(t, l.Allow("A::a1"))
}

func TestAllowTracksSessionsIndependently(t *testing.T) {
	l := New(1)

	assert.True(t, l.Allow("A::a1"))
	assert.True(t, l.Allow("B::b1"))
	assert.False(t, l.Allow("A::a1"))
}

func TestZeroLimitDisablesLimiting(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("A::a1"))
	}
}

func TestForgetDropsBucket(t *testing.T) {
	l := New(1)
	assert.True(t, l.Allow("A::a1"))
	assert.False(t, l.Allow("A::a1"))

	l.Forget("A::a1")
	assert.True(t, l.Allow("A::a1"))
}
