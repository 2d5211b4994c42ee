package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncDrop(t *testing.T) {
	Reset()

	assert.Equal(t, int64(1), IncDrop("fragmented"))
	assert.Equal(t, int64(2), IncDrop("fragmented"))
	assert.Equal(t, int64(1), IncDrop("ttl_exceeded"))

	snap := Snapshot()
	assert.Equal(t, int64(2), snap["fragmented"])
	assert.Equal(t, int64(1), snap["ttl_exceeded"])
}

func TestReset(t *testing.T) {
	Reset()
	IncDrop("x")
	Reset()
	assert.Empty(t, Snapshot())
}
