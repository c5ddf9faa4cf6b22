package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStreams(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})
	defer SetLogWriters(LogWriters{})

	Opsf("refinement aborted: %d", 3)
	Diagf("refined %d cells", 4)
	Tracef("dropped, trace stream is off")

	assert.Contains(t, ops.String(), "[dgmesh] ")
	assert.Contains(t, ops.String(), "refinement aborted: 3")
	assert.Contains(t, diag.String(), "refined 4 cells")
	assert.NotContains(t, diag.String(), "dropped")
}
