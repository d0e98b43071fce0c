package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{QueryIndex: 2, PageToken: "CAUQAA"}

	decoded, err := DecodeCursor(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeCursor(t *testing.T) {
	t.Run("empty token is the zero cursor", func(t *testing.T) {
		cursor, err := DecodeCursor("")
		require.NoError(t, err)
		assert.Equal(t, Cursor{}, cursor)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := DecodeCursor("!!not-base64!!")
		assert.Error(t, err)
	})

	t.Run("negative query index", func(t *testing.T) {
		_, err := DecodeCursor(Cursor{QueryIndex: -1}.Encode())
		assert.Error(t, err)
	})
}

func TestCursorCacheEligible(t *testing.T) {
	assert.True(t, Cursor{}.CacheEligible())
	assert.False(t, Cursor{QueryIndex: 1}.CacheEligible())
	assert.False(t, Cursor{PageToken: "CAUQAA"}.CacheEligible())
	assert.False(t, Cursor{QueryIndex: 1, PageToken: "CAUQAA"}.CacheEligible())
}

func TestAdvance(t *testing.T) {
	t.Run("continuation token keeps the same query", func(t *testing.T) {
		next, hasMore := advance(Cursor{QueryIndex: 1, PageToken: "p1"}, "p2", 3)
		require.True(t, hasMore)
		require.NotNil(t, next)
		assert.Equal(t, Cursor{QueryIndex: 1, PageToken: "p2"}, *next)
	})

	t.Run("exhausted query moves to the next query's first page", func(t *testing.T) {
		next, hasMore := advance(Cursor{QueryIndex: 0, PageToken: "p9"}, "", 3)
		require.True(t, hasMore)
		require.NotNil(t, next)
		assert.Equal(t, Cursor{QueryIndex: 1}, *next)
	})

	t.Run("last query exhausted ends the traversal", func(t *testing.T) {
		next, hasMore := advance(Cursor{QueryIndex: 2}, "", 3)
		assert.False(t, hasMore)
		assert.Nil(t, next)
	})
}
