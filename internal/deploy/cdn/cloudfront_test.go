package cdn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldSkip(t *testing.T) {
	assert.True(t, ShouldSkip("abc", "abc"))
	assert.False(t, ShouldSkip("abc", "def"))
	// first deployment: no previous token, always invalidate
	assert.False(t, ShouldSkip("", "abc"))
	assert.False(t, ShouldSkip("", ""))
}
