// Package drivertest provides an in-memory Driver for tests: scripted
// query results, recorded statements, and injectable failures.
package drivertest

import (
	"context"
	"strings"
	"sync"

	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/protocol"
)

// Call records one executed statement.
type Call struct {
	SQL    string
	Params map[string]any
	Token  string
	InTxn  bool
}

// Result scripts the response for a statement matched by substring.
type Result struct {
	Rows     []map[string]any
	Columns  []protocol.ColumnMetadata
	Affected int64
	Err      error
}

// Fake is a scriptable in-memory warehouse.
type Fake struct {
	mu          sync.Mutex
	results     map[string]Result
	defaultRes  Result
	calls       []Call
	connects    []string
	ConnectErr  error
	PingErr     error
	closedConns int
}

// NewFake returns a fake whose unmatched statements succeed with one
// affected row and no result rows.
func NewFake() *Fake {
	return &Fake{
		results:    map[string]Result{},
		defaultRes: Result{Affected: 1},
	}
}

// Script registers a result for statements containing substr.
func (f *Fake) Script(substr string, r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[substr] = r
}

// SetDefault replaces the fallback result.
func (f *Fake) SetDefault(r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultRes = r
}

// Calls returns a copy of the recorded statements.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Connects returns the tokens passed to Connect, in order.
func (f *Fake) Connects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.connects))
	copy(out, f.connects)
	return out
}

// ClosedConns counts connections that were closed.
func (f *Fake) ClosedConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedConns
}

func (f *Fake) Name() string { return "fake" }

// Connect implements driver.Driver.
func (f *Fake) Connect(ctx context.Context, token string) (driver.Conn, error) {
	f.mu.Lock()
	f.connects = append(f.connects, token)
	err := f.ConnectErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &fakeConn{fake: f, token: token}, nil
}

func (f *Fake) lookup(sqlText string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	for substr, r := range f.results {
		if substr != "" && strings.Contains(sqlText, substr) {
			return r
		}
	}
	return f.defaultRes
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

type fakeConn struct {
	fake  *Fake
	token string
}

func (c *fakeConn) Query(ctx context.Context, sqlText string, params map[string]any) ([]map[string]any, []protocol.ColumnMetadata, error) {
	c.fake.record(Call{SQL: sqlText, Params: params, Token: c.token})
	r := c.fake.lookup(sqlText)
	return r.Rows, r.Columns, r.Err
}

func (c *fakeConn) Exec(ctx context.Context, sqlText string, params map[string]any) (int64, error) {
	c.fake.record(Call{SQL: sqlText, Params: params, Token: c.token})
	r := c.fake.lookup(sqlText)
	return r.Affected, r.Err
}

func (c *fakeConn) ExecMany(ctx context.Context, sqlText string, paramSets []map[string]any) (int64, error) {
	var total int64
	for _, p := range paramSets {
		n, err := c.Exec(ctx, sqlText, p)
		if err != nil {
			return 0, err
		}
		if n == driver.RowsUnknown {
			return driver.RowsUnknown, nil
		}
		total += n
	}
	return total, nil
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.fake.mu.Lock()
	defer c.fake.mu.Unlock()
	return c.fake.PingErr
}

func (c *fakeConn) Begin(ctx context.Context) (driver.Txn, error) {
	return &fakeTxn{conn: c}, nil
}

func (c *fakeConn) Close() error {
	c.fake.mu.Lock()
	defer c.fake.mu.Unlock()
	c.fake.closedConns++
	return nil
}

type fakeTxn struct {
	conn       *fakeConn
	Committed  bool
	RolledBack bool
}

func (t *fakeTxn) Query(ctx context.Context, sqlText string, params map[string]any) ([]map[string]any, []protocol.ColumnMetadata, error) {
	t.conn.fake.record(Call{SQL: sqlText, Params: params, Token: t.conn.token, InTxn: true})
	r := t.conn.fake.lookup(sqlText)
	return r.Rows, r.Columns, r.Err
}

func (t *fakeTxn) Exec(ctx context.Context, sqlText string, params map[string]any) (int64, error) {
	t.conn.fake.record(Call{SQL: sqlText, Params: params, Token: t.conn.token, InTxn: true})
	r := t.conn.fake.lookup(sqlText)
	return r.Affected, r.Err
}

func (t *fakeTxn) ExecMany(ctx context.Context, sqlText string, paramSets []map[string]any) (int64, error) {
	var total int64
	for _, p := range paramSets {
		n, err := t.Exec(ctx, sqlText, p)
		if err != nil {
			return 0, err
		}
		if n == driver.RowsUnknown {
			return driver.RowsUnknown, nil
		}
		total += n
	}
	return total, nil
}

func (t *fakeTxn) Commit() error   { t.Committed = true; return nil }
func (t *fakeTxn) Rollback() error { t.RolledBack = true; return nil }
