package pool

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgwire-go/pgwire/pkg/conn"
	"github.com/pgwire-go/pgwire/pkg/wire"
)

// Stats is a point-in-time snapshot of pool occupancy, safe to poll from
// any goroutine.
type Stats struct {
	Live    int // connections currently open and usable
	Busy    int // of Live, connections currently acquired by a caller
	Waiting int // callers blocked in Acquire
	Failed  int // slots with no live connection, awaiting a (re)connect; not a count of attempts
}

// Handle is a borrowed connection. Callers must call Release exactly once
// when done; Release returns the connection to the pool.
type Handle struct {
	pool *Pool
	slot *slot
}

// Conn exposes the underlying connection for issuing queries.
func (h *Handle) Conn() *conn.Connection {
	return h.slot.conn
}

// Release returns the connection to the pool's available set, resolving
// the oldest waiter if one is queued.
func (h *Handle) Release() {
	h.pool.release(h.slot)
}

type slot struct {
	conn   *conn.Connection
	inUse  bool
	failed int // consecutive failures for this slot's backoff

	// released fires once, non-blocking, when a busy slot is handed back
	// via release() after the pool or the slot's connection has been
	// closed. Close() waits on it
	// for every slot that was in use at the moment it ran, rather than
	// closing the underlying connection out from under an in-flight query.
	released chan struct{}
}

func newSlot(c *conn.Connection) *slot {
	return &slot{conn: c, released: make(chan struct{}, 1)}
}

// Pool holds a fixed number of connection slots and multiplexes callers
// across them. It owns exactly one goroutine per slot for the lifetime
// of the pool, watching for that slot's connection to close and
// scheduling its replacement.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	slots     []*slot
	waiters   []chan *slot
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New validates cfg and constructs a Pool. Call Open to bring the
// initial connections up.
func New(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Pool{
		cfg:     cfg,
		logger:  cfg.logger().With("component", "pool", "size", cfg.Size),
		slots:   make([]*slot, cfg.Size),
		closeCh: make(chan struct{}),
	}, nil
}

// Open dials all N connections concurrently. It returns once the first
// wave has settled; slots that failed to open are left nil and are
// picked up by the normal backoff/replace loop. Open returns an error
// only if every slot failed on the first attempt.
func (p *Pool) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]error, len(p.slots))

	for i := range p.slots {
		i := i
		g.Go(func() error {
			c, err := p.dial(gctx)
			results[i] = err
			if err == nil {
				p.mu.Lock()
				p.slots[i] = newSlot(c)
				p.mu.Unlock()
				p.watch(i)
			}
			return nil // collect, don't abort siblings on one failure
		})
	}
	_ = g.Wait()

	liveCount := 0
	for i, s := range p.slots {
		if s != nil {
			liveCount++
			continue
		}
		p.logger.Warn("initial connect failed", "slot", i, "error", results[i])
		p.scheduleReplace(i, 1)
	}
	if liveCount == 0 {
		return wire.NewProtocolError(errFirstWaveFailed{results})
	}
	if p.cfg.HeartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}
	return nil
}

func (p *Pool) dial(ctx context.Context) (*conn.Connection, error) {
	c, err := conn.New(p.cfg.Config)
	if err != nil {
		return nil, err
	}
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// watch blocks (in its own goroutine) until the slot's connection
// closes, then schedules a replacement.
func (p *Pool) watch(i int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.mu.Lock()
		s := p.slots[i]
		p.mu.Unlock()
		if s == nil {
			return
		}
		select {
		case <-s.conn.Done():
		case <-p.closeCh:
			return
		}
		p.mu.Lock()
		failed := s.failed + 1
		p.slots[i] = nil
		p.mu.Unlock()
		if p.isClosed() {
			return
		}
		p.logger.Warn("connection lost, scheduling replacement", "slot", i, "failed", failed)
		p.scheduleReplace(i, failed)
	}()
}

// backoffDelay implements spec.md's min(2^(failed/N) ms, maxRetryInterval),
// where n is the pool size: a bigger pool tolerates more accumulated
// failures before backing off as aggressively as a small one.
func backoffDelay(failed, n int, max time.Duration) time.Duration {
	if n <= 0 {
		n = 1
	}
	ms := math.Pow(2, float64(failed)/float64(n))
	d := time.Duration(ms) * time.Millisecond
	if d > max || d <= 0 {
		return max
	}
	return d
}

func (p *Pool) scheduleReplace(i, failed int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		delay := backoffDelay(failed, p.cfg.Size, p.cfg.maxRetryInterval())
		select {
		case <-time.After(delay):
		case <-p.closeCh:
			return
		}
		if p.isClosed() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.timeout())
		c, err := p.dial(ctx)
		cancel()
		if err != nil {
			p.logger.Warn("replacement connect failed", "slot", i, "failed", failed, "error", err)
			p.scheduleReplace(i, failed+1)
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.Close()
			return
		}
		replacement := newSlot(c)
		p.slots[i] = replacement
		waiter := p.popWaiter()
		if waiter != nil {
			replacement.inUse = true
		}
		p.mu.Unlock()
		p.watch(i)
		if waiter != nil {
			waiter <- replacement
		}
	}()
}

// Acquire returns the least-loaded live connection, or blocks until one
// becomes available or ctx is done. If cfg.AcquireTimeout is set and ctx
// carries no deadline, it is applied as a default.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if p.cfg.AcquireTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
			defer cancel()
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, wire.NewClosedError("pool is closed")
	}
	if s := p.pickLeastLoaded(); s != nil {
		s.inUse = true
		p.mu.Unlock()
		return &Handle{pool: p, slot: s}, nil
	}
	wait := make(chan *slot, 1)
	p.waiters = append(p.waiters, wait)
	p.mu.Unlock()

	select {
	case s := <-wait:
		if s == nil {
			return nil, wire.NewClosedError("pool is closed")
		}
		return &Handle{pool: p, slot: s}, nil
	case <-ctx.Done():
		p.removeWaiter(wait)
		return nil, wire.NewTimeoutError("timed out waiting for an available connection")
	}
}

func (p *Pool) pickLeastLoaded() *slot {
	var best *slot
	for _, s := range p.slots {
		if s == nil || s.inUse {
			continue
		}
		if best == nil || s.conn.PendingCount() < best.conn.PendingCount() {
			best = s
		}
	}
	return best
}

func (p *Pool) popWaiter() chan *slot {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

func (p *Pool) removeWaiter(target chan *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Pool) release(s *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || s.conn.State() == "closed" {
		s.inUse = false
		select {
		case s.released <- struct{}{}:
		default:
		}
		return
	}
	waiter := p.popWaiter()
	if waiter == nil {
		s.inUse = false
		return
	}
	waiter <- s
}

func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.runHeartbeat()
		case <-p.closeCh:
			return
		}
	}
}

func (p *Pool) runHeartbeat() {
	p.mu.Lock()
	var targets []*slot
	for _, s := range p.slots {
		if s != nil && !s.inUse {
			targets = append(targets, s)
		}
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.timeout())
	defer cancel()
	for _, s := range targets {
		if _, err := s.conn.Execute(ctx, "SELECT 1", nil); err != nil {
			p.logger.Warn("heartbeat failed, closing connection", "error", err)
			s.conn.Close()
		}
	}
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var st Stats
	for _, s := range p.slots {
		if s == nil {
			st.Failed++
			continue
		}
		st.Live++
		if s.inUse {
			st.Busy++
		}
	}
	st.Waiting = len(p.waiters)
	return st
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the pool closed, wakes all waiters with a closed error,
// waits for every slot that is busy at the moment Close runs to be
// released, then closes every connection and blocks until every
// background goroutine (watchers, heartbeat, in-flight replacements)
// has exited. No new Acquire can succeed once closed is set, so a busy
// slot can only be released once more: by whichever caller currently
// holds it.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil

	var idle, busy []*slot
	for _, s := range p.slots {
		if s == nil {
			continue
		}
		if s.inUse {
			busy = append(busy, s)
		} else {
			idle = append(idle, s)
		}
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() { close(p.closeCh) })

	for _, s := range idle {
		s.conn.Close()
	}
	for _, s := range busy {
		<-s.released
		s.conn.Close()
	}
	p.wg.Wait()
}

type errFirstWaveFailed struct {
	errs []error
}

func (e errFirstWaveFailed) Error() string {
	return "pool: every connection in the initial wave failed to open"
}

func (e errFirstWaveFailed) Unwrap() []error {
	out := make([]error, 0, len(e.errs))
	for _, err := range e.errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
