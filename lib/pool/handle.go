package pool

import (
	"context"
	"sync/atomic"

	"github.com/go-i2p/dbpool/lib/dbconn"
)

// Handle is a borrowed connection. Release gives it back to the pool; it
// never closes the connection. Only statements can be run through a Handle,
// so a borrower cannot close a connection on loan. A Handle must not be used
// concurrently.
type Handle struct {
	pool     *Pool
	pc       *pooledConn
	released atomic.Bool
}

var _ dbconn.Querier = (*Handle)(nil)

func newHandle(p *Pool, pc *pooledConn) *Handle {
	return &Handle{pool: p, pc: pc}
}

// Exec runs a statement that returns no rows. Statement errors come
// straight from the driver; the pool does not act on them.
func (h *Handle) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if h.released.Load() {
		return 0, ErrHandleReleased
	}
	return h.pc.conn.Exec(ctx, stmt, args...)
}

// Query runs a statement and returns every row.
func (h *Handle) Query(ctx context.Context, stmt string, args ...any) (*dbconn.ResultSet, error) {
	if h.released.Load() {
		return nil, ErrHandleReleased
	}
	return h.pc.conn.Query(ctx, stmt, args...)
}

// Release returns the connection to the pool. Only the first call has an
// effect, so it is safe to both defer Release and call it early.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.release(h.pc)
}
