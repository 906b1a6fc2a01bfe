// Package conn implements the PostgreSQL connection lifecycle: the
// wire-level handshake, the single-threaded query-dispatch state machine,
// and the public facade (open, execute, query, transaction, close) callers
// use.
package conn

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pgwire-go/pgwire/pkg/auth"
	"github.com/pgwire-go/pgwire/pkg/params"
	"github.com/pgwire-go/pgwire/pkg/wire"
)

type state int

const (
	stateClosed state = iota
	stateSocketConnected
	stateAuthenticating
	stateIdle
	stateBusy
	stateReadyInTransaction
	stateTransactionFailure
)

func (s state) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateSocketConnected:
		return "socket-connected"
	case stateAuthenticating:
		return "authenticating"
	case stateIdle:
		return "idle"
	case stateBusy:
		return "busy"
	case stateReadyInTransaction:
		return "ready-in-transaction"
	case stateTransactionFailure:
		return "transaction-failure"
	default:
		return "unknown"
	}
}

// Connection is a single, single-use PostgreSQL connection. Once closed
// (cleanly or via error) it cannot be reopened.
type Connection struct {
	cfg    Config
	logger *slog.Logger

	netConn net.Conn
	framer  *wire.Framer
	reader  *bufferedReader[wire.BackendMessage]

	enqueueCh   chan *Query
	subscribeCh chan chan Notification
	closeCh     chan struct{}
	closeOnce   sync.Once
	doneCh      chan struct{}

	openResultCh chan error
	openSignaled bool
	hasOpened    atomic.Bool
	closed       atomic.Bool

	// tableNames is a caller-facing cache guarded by its own mutex; it is
	// not run()-owned state.
	tableNames tableNameResolver

	// Fields below are owned exclusively by the run() goroutine.
	st              state
	processID       uint32
	secretKey       uint32
	paramStatuses   params.ParameterStatuses
	cache           *queryCache
	pendingFIFO     []*Query
	activeTx        *Tx
	currentQuery    *Query
	authSalt        [4]byte
	scramClient     *auth.ScramClient
	nextStatementID uint64
	subscribers     []chan Notification
}

// New constructs a not-yet-opened connection. Call Open to dial and
// authenticate.
func New(cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Connection{
		cfg:           cfg,
		logger:        cfg.logger().With("host", cfg.Host, "port", cfg.Port, "database", cfg.Database),
		enqueueCh:     make(chan *Query),
		subscribeCh:   make(chan chan Notification),
		closeCh:       make(chan struct{}),
		doneCh:        make(chan struct{}),
		openResultCh:  make(chan error, 1),
		cache:         newQueryCache(),
		paramStatuses: params.ParameterStatuses{},
	}
	c.tableNames.names = make(map[uint32]string)
	return c, nil
}

// Open dials, performs the SSL upgrade (if configured) and the
// authentication handshake, and blocks until the connection reaches Idle
// or fails. Calling Open a second time, including after Close, fails with
// a closed-error.
func (c *Connection) Open(ctx context.Context) error {
	if !c.hasOpened.CompareAndSwap(false, true) {
		return wire.NewClosedError("Attempting to reopen a closed connection")
	}

	go c.run()

	select {
	case err := <-c.openResultCh:
		return err
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

func (c *Connection) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.cfg.timeout()}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return wire.NewTimeoutError("Timed out trying to connect")
	}

	if c.cfg.UseSSL {
		if _, err := conn.Write(wire.EncodeSSLRequest()); err != nil {
			conn.Close()
			return wire.NewProtocolError(err)
		}
		reply := make([]byte, 1)
		if _, err := readFull(conn, reply); err != nil {
			conn.Close()
			return wire.NewProtocolError(err)
		}
		if reply[0] != 'S' {
			conn.Close()
			return wire.NewAuthError("server refused SSL upgrade", nil)
		}
		tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true}) //nolint:gosec
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return wire.NewProtocolError(err)
		}
		conn = tlsConn
	}

	c.netConn = conn
	c.framer = wire.NewFramer()
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Connection) startReader() {
	c.reader = newBufferedReader(func(ctx context.Context) (*wire.BackendMessage, error) {
		for {
			if raw, ok := c.framer.Next(); ok {
				msg, err := wire.Decode(raw)
				if err != nil {
					return nil, err
				}
				return &msg, nil
			}
			buf := make([]byte, 4096)
			n, err := c.netConn.Read(buf)
			if n > 0 {
				if perr := c.framer.Push(buf[:n]); perr != nil {
					return nil, perr
				}
			}
			if err != nil {
				return nil, err
			}
		}
	})
	c.reader.start()
}

func (c *Connection) run() {
	defer close(c.doneCh)

	c.st = stateSocketConnected
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.timeout())
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.finishOpen(err)
		c.st = stateClosed
		return
	}
	c.startReader()
	c.write(wire.EncodeStartupMessage(wire.StartupParams{
		User:     c.cfg.Username,
		Database: c.cfg.Database,
		TimeZone: c.cfg.timeZone(),
	}))

	// handshakeDeadline fires at most once; once the handshake has
	// already finished, its firing is simply ignored below.
	// It shares ctx's deadline, so dial and handshake draw on one budget.
	deadline, _ := ctx.Deadline()
	handshakeDeadline := time.NewTimer(time.Until(deadline))
	defer handshakeDeadline.Stop()

	events := c.reader.outCh
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.abort(wire.NewClosedError("connection closed or query cancelled"))
				return
			}
			if ev.Error != nil {
				c.abort(wire.NewProtocolError(ev.Error))
				return
			}
			c.handleMessage(ev.Value)
			if c.st == stateClosed {
				return
			}
		case q := <-c.enqueueCh:
			c.enqueueQuery(q)
			c.maybeDispatch()
		case sub := <-c.subscribeCh:
			c.subscribers = append(c.subscribers, sub)
		case <-c.closeCh:
			c.abort(wire.NewClosedError("connection closed or query cancelled"))
			return
		case <-handshakeDeadline.C:
			if c.st == stateSocketConnected || c.st == stateAuthenticating {
				c.abort(wire.NewTimeoutError("Timed out trying to connect"))
				return
			}
		}
	}
}

func (c *Connection) write(buf []byte) {
	if _, err := c.netConn.Write(buf); err != nil {
		c.abort(wire.NewProtocolError(err))
	}
}

// finishOpen resolves the Open() future exactly once.
func (c *Connection) finishOpen(err error) {
	if c.openSignaled {
		return
	}
	c.openSignaled = true
	c.openResultCh <- err
}

// abort tears the connection down: it fails every queued and in-flight
// query, closes the socket, resolves Open() if still pending, and closes
// the notification subscriber channels.
func (c *Connection) abort(cause error) {
	c.st = stateClosed
	c.closed.Store(true)
	c.finishOpen(cause)

	if c.currentQuery != nil {
		c.currentQuery.fail(cause)
		c.currentQuery = nil
	}
	for _, q := range c.pendingFIFO {
		q.fail(cause)
	}
	c.pendingFIFO = nil
	if c.activeTx != nil {
		for _, q := range c.activeTx.fifo {
			q.fail(cause)
		}
		c.activeTx = nil
	}

	if c.netConn != nil {
		c.netConn.Close()
	}
	if c.reader != nil {
		c.reader.stop()
	}
	for _, sub := range c.subscribers {
		close(sub)
	}
	c.subscribers = nil
}

// Close cancels every pending and in-flight query with a closed-error and
// shuts down the socket. Idempotent.
func (c *Connection) Close() {
	c.closed.Store(true)
	c.closeOnce.Do(func() { close(c.closeCh) })
}

// Done returns a channel closed once the connection's run loop has fully
// exited, mirroring the spec's "done" signal.
func (c *Connection) Done() <-chan struct{} {
	return c.doneCh
}

// State reports the connection's current FSM state, for diagnostics and
// pool health checks. Not part of the caller-facing protocol contract.
func (c *Connection) State() string {
	return c.st.String()
}

// ParameterStatuses returns the latest server-reported settings snapshot.
func (c *Connection) ParameterStatuses() params.ParameterStatuses {
	return c.paramStatuses
}

// PendingCount returns the number of queries waiting or in flight, used
// by the pool to pick the least-loaded connection.
func (c *Connection) PendingCount() int {
	n := len(c.pendingFIFO)
	if c.currentQuery != nil {
		n++
	}
	if c.activeTx != nil {
		n += len(c.activeTx.fifo)
	}
	return n
}

func (c *Connection) submit(q *Query) error {
	if c.closed.Load() {
		return wire.NewClosedError("connection is closed")
	}
	select {
	case c.enqueueCh <- q:
		return nil
	case <-c.doneCh:
		return wire.NewClosedError("connection is closed")
	}
}

// Execute runs sql via the simple-query path and returns the
// affected-row count.
func (c *Connection) Execute(ctx context.Context, sql string, bindings map[string]any) (int64, error) {
	q := newQuery(sql, bindings, true, false)
	return c.executeAffectedRows(ctx, q)
}

func (c *Connection) executeAffectedRows(ctx context.Context, q *Query) (int64, error) {
	if err := c.submit(q); err != nil {
		return 0, err
	}
	res, err := q.wait(ctx)
	if err != nil {
		return 0, err
	}
	return res.AffectedRows, nil
}

// Query runs sql via the extended-query path and returns its rows.
// allowReuse controls whether the reuse cache may be consulted or
// populated for this statement text.
func (c *Connection) Query(ctx context.Context, sql string, bindings map[string]any, allowReuse bool) (*Result, error) {
	q := newQuery(sql, bindings, false, allowReuse)
	if err := c.submit(q); err != nil {
		return nil, err
	}
	return q.wait(ctx)
}

// Transaction runs block within BEGIN/COMMIT. If block returns a
// Rollback value, ROLLBACK is issued and Transaction returns that value
// with a nil error. Any other error also issues ROLLBACK and is returned
// as-is. Otherwise COMMIT is issued and block's return value is returned.
func (c *Connection) Transaction(ctx context.Context, block func(tx *Tx) (any, error)) (any, error) {
	tx := &Tx{conn: c}

	begin := newQuery("BEGIN", nil, true, false)
	begin.tx = tx
	if _, err := c.executeAffectedRows(ctx, begin); err != nil {
		return nil, err
	}

	result, blockErr := block(tx)

	if rb, ok := blockErr.(Rollback); ok {
		rollback := newQuery("ROLLBACK", nil, true, false)
		rollback.tx = tx
		_, _ = c.executeAffectedRows(ctx, rollback)
		return rb, nil
	}
	if blockErr != nil {
		rollback := newQuery("ROLLBACK", nil, true, false)
		rollback.tx = tx
		_, _ = c.executeAffectedRows(ctx, rollback)
		return nil, blockErr
	}

	commit := newQuery("COMMIT", nil, true, false)
	commit.tx = tx
	if _, err := c.executeAffectedRows(ctx, commit); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Connection) enqueueQuery(q *Query) {
	if q.tx != nil {
		c.activeTx = q.tx
		q.tx.fifo = append(q.tx.fifo, q)
		return
	}
	c.pendingFIFO = append(c.pendingFIFO, q)
}

func popFront(fifo *[]*Query) *Query {
	if len(*fifo) == 0 {
		return nil
	}
	q := (*fifo)[0]
	*fifo = (*fifo)[1:]
	return q
}

func (c *Connection) maybeDispatch() {
	switch c.st {
	case stateIdle:
		if c.activeTx != nil {
			if q := popFront(&c.activeTx.fifo); q != nil {
				c.dispatch(q)
				return
			}
		}
		if q := popFront(&c.pendingFIFO); q != nil {
			c.dispatch(q)
		}
	case stateReadyInTransaction:
		if c.activeTx != nil {
			if q := popFront(&c.activeTx.fifo); q != nil {
				c.dispatch(q)
			}
		}
	case stateTransactionFailure:
		if c.activeTx != nil && len(c.activeTx.fifo) > 0 {
			c.st = stateReadyInTransaction
			c.maybeDispatch()
		}
	}
}

func (c *Connection) nextStatementName() string {
	c.nextStatementID++
	return fmt.Sprintf("%012d", c.nextStatementID)
}

func (c *Connection) dispatch(q *Query) {
	c.currentQuery = q
	c.st = stateBusy

	if q.onlyAffectedRowCount {
		text, err := c.cfg.substitutor().SubstituteText(q.sql, q.bindings)
		if err != nil {
			c.deferFail(q, err)
			return
		}
		c.write(wire.EncodeQuery(text))
		return
	}

	rewritten, values, err := c.cfg.substitutor().SubstituteExtended(q.sql, q.bindings)
	if err != nil {
		c.deferFail(q, err)
		return
	}
	q.rewrittenSQL = rewritten
	q.extendedValues = values

	bindParams, err := encodeBindParams(values)
	if err != nil {
		c.deferFail(q, err)
		return
	}

	var buf []byte
	if entry, ok := c.cache.lookup(rewritten); ok && q.allowReuse {
		buf = append(buf, wire.EncodeBind(entry.name, bindParams)...)
	} else {
		// A fresh Parse+Describe happens here whenever there's no cache
		// entry to reuse, regardless of q.allowReuse: an opted-out query
		// still needs its own prepared statement to run. pendingStatementName
		// only marks that Describe was sent (so validateParamDescription
		// knows to expect a ParameterDescription); it does not by itself
		// cause the statement to be cached, since validateParamDescription
		// gates the actual cache.store on q.allowReuse.
		name := c.nextStatementName()
		q.pendingStatementName = name
		buf = append(buf, wire.EncodeParse(name, rewritten)...)
		buf = append(buf, wire.EncodeDescribeStatement(name)...)
		buf = append(buf, wire.EncodeBind(name, bindParams)...)
	}
	buf = append(buf, wire.EncodeExecute()...)
	buf = append(buf, wire.EncodeSync()...)
	c.write(buf)
}

// deferFail handles a serialization error (bad substitution) discovered
// before anything was written to the wire: the query fails immediately
// and the connection stays ready to dispatch the next one.
func (c *Connection) deferFail(q *Query, err error) {
	c.currentQuery = nil
	q.fail(err)
	c.st = stateIdle
	if q.tx != nil {
		c.st = stateReadyInTransaction
	}
	c.maybeDispatch()
}

func encodeBindParams(values []params.ExtendedParam) ([]wire.BindParam, error) {
	out := make([]wire.BindParam, len(values))
	for i, v := range values {
		data, err := wire.EncodeValue(v.Value, v.Type)
		if err != nil {
			return nil, err
		}
		out[i] = wire.BindParam{Data: data, FormatCode: 1}
	}
	return out, nil
}

func (c *Connection) decodeRow(fields []wire.FieldDescriptor, values [][]byte) ([]any, error) {
	row := make([]any, len(values))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		var oid wire.OID
		if i < len(fields) {
			oid = wire.OID(fields[i].TypeOID)
		}
		v, err := c.cfg.decoder().Decode(oid, raw)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
