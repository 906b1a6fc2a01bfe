package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgwire-go/pgwire/pkg/wire"
)

// tableNameResolver caches RowDescription table-OID -> relation-name
// lookups for a connection's lifetime. It is a caller-facing helper, not
// FSM state, so it guards its own map rather than relying on run()'s
// single-goroutine ownership.
type tableNameResolver struct {
	mu    sync.Mutex
	names map[uint32]string
}

// ResolveTableNames looks up the source relation name for each field's
// TableOID, per spec §3's "post-processing step" for RowDescription
// results. Fields with TableOID 0 (no source table, e.g. computed
// columns) are omitted from the result. Each OID not already cached
// costs one additional extended-protocol round trip against pg_class;
// results are cached for the lifetime of the connection.
func (c *Connection) ResolveTableNames(ctx context.Context, fields []wire.FieldDescriptor) (map[uint32]string, error) {
	result := make(map[uint32]string, len(fields))
	var missing []uint32

	c.tableNames.mu.Lock()
	for _, f := range fields {
		if f.TableOID == 0 {
			continue
		}
		if name, ok := c.tableNames.names[f.TableOID]; ok {
			result[f.TableOID] = name
		} else if !contains(missing, f.TableOID) {
			missing = append(missing, f.TableOID)
		}
	}
	c.tableNames.mu.Unlock()

	for _, oid := range missing {
		name, err := c.lookupRelname(ctx, oid)
		if err != nil {
			return nil, err
		}
		c.tableNames.mu.Lock()
		c.tableNames.names[oid] = name
		c.tableNames.mu.Unlock()
		result[oid] = name
	}
	return result, nil
}

// lookupRelname queries pg_class directly by formatting oid as an integer
// literal rather than binding it through a placeholder: oid comes from a
// server-sent TableOID, never from caller-supplied SQL text, so there is
// no injection surface, and passing no bindings at all means this
// internal query passes through unchanged no matter which placeholder
// convention the caller's configured Substitutor expects.
func (c *Connection) lookupRelname(ctx context.Context, oid uint32) (string, error) {
	sql := fmt.Sprintf("select relname from pg_class where oid = %d", oid)
	res, err := c.Query(ctx, sql, nil, true)
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 || res.Rows[0][0] == nil {
		return "", nil
	}
	name, _ := res.Rows[0][0].(string)
	return name, nil
}

func contains(haystack []uint32, needle uint32) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
