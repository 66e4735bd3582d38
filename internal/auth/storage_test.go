package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStoreSetGetDelete(t *testing.T) {
	s := NewMockStore()

	_, found, err := s.Get("key-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("key-1", "correct-horse-battery-staple"))
	passphrase, found, err := s.Get("key-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "correct-horse-battery-staple", passphrase)

	require.NoError(t, s.Delete("key-1"))
	_, found, err = s.Get("key-1")
	require.NoError(t, err)
	assert.False(t, found)
}
