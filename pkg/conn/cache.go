package conn

import "github.com/pgwire-go/pgwire/pkg/wire"

// cacheEntry is a server-side prepared statement this connection has
// already Parsed, valid only once the server's ParameterDescription has
// confirmed the parameter types still match.
type cacheEntry struct {
	name       string
	paramTypes []wire.PgType
}

// queryCache maps statement text to the prepared-statement name the
// server knows it under. It is owned exclusively by the connection's run
// goroutine — no locking.
type queryCache struct {
	entries map[string]cacheEntry
}

func newQueryCache() *queryCache {
	return &queryCache{entries: map[string]cacheEntry{}}
}

func (c *queryCache) lookup(sql string) (cacheEntry, bool) {
	e, ok := c.entries[sql]
	return e, ok
}

func (c *queryCache) store(sql, name string, paramTypes []wire.PgType) {
	c.entries[sql] = cacheEntry{name: name, paramTypes: paramTypes}
}

func (c *queryCache) invalidate(sql string) {
	delete(c.entries, sql)
}

func paramTypesEqual(a, b []wire.PgType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
