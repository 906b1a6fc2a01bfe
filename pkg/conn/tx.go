package conn

import "context"

// Rollback is a sentinel value returned from Transaction when the block
// explicitly cancels the transaction by returning it as the block's
// error. It implements error solely so it can be returned through
// block's `(any, error)` signature; Transaction special-cases it before
// it is ever treated as a real failure.
type Rollback struct {
	Reason string
}

func (r Rollback) Error() string {
	return "rollback: " + r.Reason
}

// Tx is the context handed to a transaction block. Queries issued through
// it are routed through the owning connection's FSM but pulled from the
// transaction's own FIFO rather than the connection's general queue.
type Tx struct {
	conn *Connection
	fifo []*Query
}

// Execute runs sql for its affected-row count within the transaction.
func (tx *Tx) Execute(ctx context.Context, sql string, bindings map[string]any) (int64, error) {
	q := newQuery(sql, bindings, true, false)
	q.tx = tx
	return tx.conn.executeAffectedRows(ctx, q)
}

// Query runs sql and returns its rows within the transaction.
func (tx *Tx) Query(ctx context.Context, sql string, bindings map[string]any, allowReuse bool) (*Result, error) {
	q := newQuery(sql, bindings, false, allowReuse)
	q.tx = tx
	if err := tx.conn.submit(q); err != nil {
		return nil, err
	}
	return q.wait(ctx)
}
