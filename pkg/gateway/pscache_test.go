package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreparedStatementCache_RecordAndOwner(t *testing.T) {
	cache := NewPreparedStatementCache()
	tokenA := []byte("tenantAAAAAAAAAAAAAA")
	tokenB := []byte("tenantBBBBBBBBBBBBBB")

	idA := []byte("prepared-id-a")
	cache.Record(idA, tokenA)

	owner, ok := cache.Owner(idA)
	require.True(t, ok)
	require.Equal(t, tokenA, owner)

	require.True(t, cache.OwnedBy(idA, tokenA))
	require.False(t, cache.OwnedBy(idA, tokenB))
}

func TestPreparedStatementCache_UnknownId(t *testing.T) {
	cache := NewPreparedStatementCache()
	_, ok := cache.Owner([]byte("never-prepared"))
	require.False(t, ok)
	require.False(t, cache.OwnedBy([]byte("never-prepared"), []byte("anything")))
}

func TestPreparedStatementCache_SizeAndOverwrite(t *testing.T) {
	cache := NewPreparedStatementCache()
	for i := 0; i < 5; i++ {
		cache.Record([]byte(fmt.Sprintf("id-%d", i)), []byte("tenant"))
	}
	require.Equal(t, 5, cache.Size())

	cache.Record([]byte("id-0"), []byte("other-tenant"))
	require.Equal(t, 5, cache.Size())
	owner, ok := cache.Owner([]byte("id-0"))
	require.True(t, ok)
	require.Equal(t, []byte("other-tenant"), owner)
}
