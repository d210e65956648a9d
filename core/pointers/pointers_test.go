package pointers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointers(t *testing.T) {
	assert.Equal(t, int64(0), SafeInt64(nil))
	assert.Equal(t, int64(7), SafeInt64(Int64Ptr(7)))
	assert.True(t, BoolOr(nil, true))
	assert.False(t, BoolOr(BoolPtr(false), true))
	assert.True(t, BoolOr(BoolPtr(true), false))
}
