package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanStart(t *testing.T) {
	s := New(3)

	assert.True(t, s.CanStart(0))
	assert.True(t, s.CanStart(2))
	assert.False(t, s.CanStart(3))
	assert.False(t, s.CanStart(4))
}
