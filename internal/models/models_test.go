package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", TruncateError(""))
	assert.Equal(t, "short", TruncateError("short"))

	exact := strings.Repeat("x", MaxErrorMessageLen)
	assert.Equal(t, exact, TruncateError(exact))

	long := strings.Repeat("x", MaxErrorMessageLen+100)
	got := TruncateError(long)
	assert.Len(t, got, MaxErrorMessageLen)
	assert.Equal(t, long[:MaxErrorMessageLen], got)
}
