// Package pool caches warehouse connections per identity. Service
// principal connections are shared and long-lived; on-behalf-of
// connections are reused only while the caller presents the same token,
// and a token the pool has no room for gets a one-shot connection that
// closes on release.
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
)

// ReleaseFunc returns a leased connection to the pool. One-shot
// connections close here; cached ones stay open.
type ReleaseFunc func()

// Pool hands out identity-keyed connections.
type Pool struct {
	drv     driver.Driver
	maxOBO  int
	mu      sync.Mutex
	sp      driver.Conn
	obo     map[string]driver.Conn
}

// New returns a pool over drv caching at most maxOBO distinct user tokens.
func New(drv driver.Driver, maxOBO int) *Pool {
	if maxOBO < 1 {
		maxOBO = 1
	}
	return &Pool{drv: drv, maxOBO: maxOBO, obo: map[string]driver.Conn{}}
}

// fingerprint keys OBO connections without holding raw tokens in maps.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Lease returns a connection for the identity. An empty token leases the
// shared service principal connection; a token leases that user's cached
// connection, or a one-shot when the cache is full of other tokens.
func (p *Pool) Lease(ctx context.Context, token string) (driver.Conn, ReleaseFunc, error) {
	if token == "" {
		return p.leaseSP(ctx)
	}
	return p.leaseOBO(ctx, token)
}

func (p *Pool) leaseSP(ctx context.Context) (driver.Conn, ReleaseFunc, error) {
	p.mu.Lock()
	conn := p.sp
	p.mu.Unlock()

	if conn != nil {
		if err := conn.Ping(ctx); err == nil {
			return conn, func() {}, nil
		}
		logging.Logger(ctx).Warn("cached service principal connection went stale, rebuilding")
		p.mu.Lock()
		if p.sp == conn {
			p.sp = nil
		}
		p.mu.Unlock()
		_ = conn.Close()
	}

	fresh, err := p.drv.Connect(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	if p.sp == nil {
		p.sp = fresh
	} else {
		// Another goroutine connected first; keep theirs.
		go fresh.Close()
		fresh = p.sp
	}
	p.mu.Unlock()
	return fresh, func() {}, nil
}

func (p *Pool) leaseOBO(ctx context.Context, token string) (driver.Conn, ReleaseFunc, error) {
	key := fingerprint(token)

	p.mu.Lock()
	conn, ok := p.obo[key]
	p.mu.Unlock()

	if ok {
		if err := conn.Ping(ctx); err == nil {
			return conn, func() {}, nil
		}
		p.mu.Lock()
		if p.obo[key] == conn {
			delete(p.obo, key)
		}
		p.mu.Unlock()
		_ = conn.Close()
	}

	fresh, err := p.drv.Connect(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	if _, exists := p.obo[key]; !exists && len(p.obo) < p.maxOBO {
		p.obo[key] = fresh
		p.mu.Unlock()
		return fresh, func() {}, nil
	}
	p.mu.Unlock()

	// Cache is full of other identities: serve one-shot and close on release.
	logging.Logger(ctx).Debug("obo connection cache full, serving one-shot connection")
	return fresh, func() { _ = fresh.Close() }, nil
}

// Transaction leases a connection for the identity and runs fn inside a
// transaction, committing on success and rolling back on error.
func (p *Pool) Transaction(ctx context.Context, token string, fn func(driver.Txn) error) error {
	conn, release, err := p.Lease(ctx, token)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Logger(ctx).WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return protocol.ConnectionError(
			"The transaction could not be committed.", err.Error()).WithCause(err)
	}
	return nil
}

// InvalidateOBO drops and closes the cached connection for a token.
func (p *Pool) InvalidateOBO(token string) {
	key := fingerprint(token)
	p.mu.Lock()
	conn := p.obo[key]
	delete(p.obo, key)
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Close shuts down every cached connection.
func (p *Pool) Close() {
	p.mu.Lock()
	sp := p.sp
	p.sp = nil
	obo := p.obo
	p.obo = map[string]driver.Conn{}
	p.mu.Unlock()

	if sp != nil {
		_ = sp.Close()
	}
	for _, conn := range obo {
		_ = conn.Close()
	}
}

// Stats reports cache occupancy for observability.
func (p *Pool) Stats() (spCached bool, oboCached int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sp != nil, len(p.obo)
}
