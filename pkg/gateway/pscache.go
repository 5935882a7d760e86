package gateway

import (
	"sync"
)

// PreparedStatementCache maps a server-issued prepared statement id to
// the internal token of the tenant that prepared it (spec.md §3,
// "prepared_id_owners"), following the RWMutex-guarded map shape of
// proxy/pkg/zdmproxy/pscache.go, collapsed from that file's dual-cluster
// indexing down to the single mapping this spec needs.
type PreparedStatementCache struct {
	lock   sync.RWMutex
	owners map[string][]byte
}

// NewPreparedStatementCache returns an empty cache.
func NewPreparedStatementCache() *PreparedStatementCache {
	return &PreparedStatementCache{
		owners: make(map[string][]byte),
	}
}

// Record stores the owning tenant for a prepared statement id. Called
// for every prepared id the upstream returns, before the response is
// forwarded to the client (invariant 4 in spec.md §3).
func (c *PreparedStatementCache) Record(preparedID []byte, internalToken []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.owners[string(preparedID)] = internalToken
}

// Owner returns the internal token that prepared preparedID, and
// whether it is known at all.
func (c *PreparedStatementCache) Owner(preparedID []byte) ([]byte, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	owner, ok := c.owners[string(preparedID)]
	return owner, ok
}

// OwnedBy reports whether preparedID was prepared by the tenant holding
// internalToken - the check behind EXECUTE authorization in spec.md §4.2.
func (c *PreparedStatementCache) OwnedBy(preparedID []byte, internalToken []byte) bool {
	owner, ok := c.Owner(preparedID)
	if !ok {
		return false
	}
	return string(owner) == string(internalToken)
}

// Size reports how many prepared statements are currently tracked.
// Exposed for metrics, mirroring GetPreparedStatementCacheSize in the
// teacher's cache.
func (c *PreparedStatementCache) Size() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.owners)
}
