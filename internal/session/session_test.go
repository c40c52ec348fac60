package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddThenDuplicateAddFails(t *testing.T) {
	r := New()

	assert.True(t, r.Add("A", "a1").OK)

	dup := r.Add("A", "a1")
	assert.False(t, dup.OK)
	assert.Equal(t, "Client already exists", dup.Message)
}

func TestRemoveThenReAddSucceeds(t *testing.T) {
	r := New()
	r.Add("A", "a1")

	require := r.Remove("A", "a1")
	assert.True(t, require.OK)

	again := r.Add("A", "a1")
	assert.True(t, again.OK)
}

func TestRemoveMissingFails(t *testing.T) {
	r := New()
	result := r.Remove("ghost", "sub")
	assert.False(t, result.OK)
	assert.Equal(t, "Client not exist", result.Message)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Add("A", "a1")

	snap := r.Snapshot()
	assert.Len(t, snap, 1)

	r.Add("B", "b1")
	assert.Len(t, snap, 1, "mutating the registry after snapshot must not affect the copy")
	assert.Len(t, r.Snapshot(), 2)
}

func TestUpdateStatusIsNoOpWhenDisconnected(t *testing.T) {
	r := New()
	r.UpdateStatus("ghost", "sub", `{"x":1}`)
	assert.Len(t, r.Snapshot(), 0)
}
