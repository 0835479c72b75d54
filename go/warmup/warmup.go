// Package warmup nudges a paused warehouse awake before the first real
// statement of a burst, so user queries don't eat the cold-start latency.
package warmup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/pool"
)

const defaultStatement = "SELECT 1"

// Gate runs at most one warmup probe at a time. A successful probe is
// remembered for the TTL; a failed one suppresses retries for the backoff
// so a dead warehouse doesn't get hammered. MaybeWarm never returns an
// error: warmup is advisory and the real statement follows regardless.
type Gate struct {
	pool    *pool.Pool
	enabled bool
	sql     string
	ttl     time.Duration
	backoff time.Duration
	timeout time.Duration
	now     func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	lastSuccess time.Time
	lastFailure time.Time
}

// New returns a gate over the pool's service principal connection. An
// empty sql falls back to SELECT 1.
func New(p *pool.Pool, enabled bool, sql string, ttl, backoff, timeout time.Duration) *Gate {
	if sql == "" {
		sql = defaultStatement
	}
	return &Gate{
		pool:    p,
		enabled: enabled,
		sql:     sql,
		ttl:     ttl,
		backoff: backoff,
		timeout: timeout,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test use only.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// MaybeWarm probes the warehouse if neither the success TTL nor the
// failure backoff is in effect. Concurrent callers share one probe.
func (g *Gate) MaybeWarm(ctx context.Context) {
	if g == nil || !g.enabled {
		return
	}
	if !g.due() {
		return
	}

	_, _, _ = g.group.Do("warmup", func() (any, error) {
		// Re-check under the flight: a caller that waited on the previous
		// probe must not immediately launch another.
		if !g.due() {
			return nil, nil
		}
		g.probe(ctx)
		return nil, nil
	})
}

func (g *Gate) due() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if !g.lastSuccess.IsZero() && now.Sub(g.lastSuccess) < g.ttl {
		return false
	}
	if !g.lastFailure.IsZero() && now.Sub(g.lastFailure) < g.backoff {
		return false
	}
	return true
}

func (g *Gate) probe(ctx context.Context) {
	log := logging.Logger(ctx)
	probeCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := g.now()
	conn, release, err := g.pool.Lease(probeCtx, "")
	if err != nil {
		g.noteFailure()
		log.WithError(err).Warn("warehouse warmup lease failed")
		return
	}
	defer release()

	if _, _, err := conn.Query(probeCtx, g.sql, nil); err != nil {
		g.noteFailure()
		log.WithError(err).Warn("warehouse warmup probe failed")
		return
	}

	g.mu.Lock()
	g.lastSuccess = g.now()
	g.lastFailure = time.Time{}
	g.mu.Unlock()
	log.WithField("duration_ms", g.now().Sub(start).Milliseconds()).
		Debug("warehouse warmed")
}

func (g *Gate) noteFailure() {
	g.mu.Lock()
	g.lastFailure = g.now()
	g.mu.Unlock()
}
