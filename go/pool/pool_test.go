package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/driver/drivertest"
)

func TestSPConnectionReused(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	c1, release1, err := p.Lease(ctx, "")
	require.NoError(t, err)
	release1()

	c2, release2, err := p.Lease(ctx, "")
	require.NoError(t, err)
	release2()

	require.Same(t, c1, c2)
	require.Equal(t, []string{""}, fake.Connects())
}

func TestOBOSameTokenReused(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	c1, r1, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r1()
	c2, r2, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r2()

	require.Same(t, c1, c2)
	require.Equal(t, []string{"token-a"}, fake.Connects())
	require.Zero(t, fake.ClosedConns())
}

func TestOBODifferentTokensGetDifferentConnections(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	c1, r1, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r1()
	c2, r2, err := p.Lease(ctx, "token-b")
	require.NoError(t, err)
	r2()

	require.NotSame(t, c1, c2)
	require.Equal(t, []string{"token-a", "token-b"}, fake.Connects())
}

func TestOBOOneShotWhenCacheFull(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 1)

	_, r1, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r1()

	// Second identity does not fit; its connection closes on release.
	_, r2, err := p.Lease(ctx, "token-b")
	require.NoError(t, err)
	require.Zero(t, fake.ClosedConns())
	r2()
	require.Equal(t, 1, fake.ClosedConns())

	// The cached first identity still works.
	_, r3, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r3()
	require.Equal(t, []string{"token-a", "token-b"}, fake.Connects())
}

func TestSPAndOBONeverShare(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	sp, rs, err := p.Lease(ctx, "")
	require.NoError(t, err)
	rs()
	obo, ro, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	ro()

	require.NotSame(t, sp, obo)
}

func TestStaleConnectionRebuilt(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	c1, r1, err := p.Lease(ctx, "")
	require.NoError(t, err)
	r1()

	// Reuse pings the cached connection; a failing ping drops it and a
	// fresh connection is built in its place.
	fake.PingErr = errors.New("gone away")
	c2, r2, err := p.Lease(ctx, "")
	require.NoError(t, err)
	r2()

	require.NotSame(t, c1, c2)
	require.Equal(t, 1, fake.ClosedConns())
	require.Equal(t, []string{"", ""}, fake.Connects())
}

func TestConnectErrorPropagates(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	fake.ConnectErr = errors.New("dns failure")
	p := New(fake, 4)

	_, _, err := p.Lease(ctx, "")
	require.Error(t, err)
}

func TestTransactionCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	err := p.Transaction(ctx, "", func(tx driver.Txn) error {
		_, err := tx.Exec(ctx, "UPDATE x SET a = %(s_a)s", map[string]any{"s_a": 1})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("handler failed")
	err = p.Transaction(ctx, "", func(tx driver.Txn) error { return boom })
	require.ErrorIs(t, err, boom)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.True(t, calls[0].InTxn)
}

func TestInvalidateAndClose(t *testing.T) {
	ctx := context.Background()
	fake := drivertest.NewFake()
	p := New(fake, 4)

	_, r1, err := p.Lease(ctx, "token-a")
	require.NoError(t, err)
	r1()
	_, r2, err := p.Lease(ctx, "")
	require.NoError(t, err)
	r2()

	p.InvalidateOBO("token-a")
	require.Equal(t, 1, fake.ClosedConns())

	p.Close()
	require.Equal(t, 2, fake.ClosedConns())

	spCached, oboCached := p.Stats()
	require.False(t, spCached)
	require.Zero(t, oboCached)
}
