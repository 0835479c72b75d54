package schema

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/driver/drivertest"
	"github.com/sovakpeter/lakegate/go/pool"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
)

func sampleSchema(fetchedAt time.Time) *TableSchema {
	return &TableSchema{
		Catalog: "main",
		Schema:  "sales",
		Table:   "orders",
		Columns: []Column{
			{Name: "id", DataType: "BIGINT", IsPrimaryKey: true, OrdinalPosition: 1},
			{Name: "status", DataType: "STRING", Nullable: true, OrdinalPosition: 2},
		},
		FetchedAt: fetchedAt,
	}
}

func TestCacheMemoryAndFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 16, time.Hour)

	require.NoError(t, c.Put(sampleSchema(time.Now())))

	got, ok := c.Get("main", "sales", "orders")
	require.True(t, ok)
	require.Equal(t, []string{"id", "status"}, got.ColumnNames())
	require.Equal(t, []string{"id"}, got.PrimaryKeyColumns())

	// File tier holds the entry for a fresh cache instance.
	c2 := NewCache(dir, 16, time.Hour)
	got2, ok := c2.Get("main", "sales", "orders")
	require.True(t, ok)
	require.Equal(t, "main.sales.orders", got2.TableRef())

	// Written at the expected path.
	_, err := os.Stat(filepath.Join(dir, "main", "sales.orders.json"))
	require.NoError(t, err)
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 16, time.Hour)

	stale := sampleSchema(time.Now().Add(-2 * time.Hour))
	require.NoError(t, c.Put(stale))

	_, ok := c.Get("main", "sales", "orders")
	require.False(t, ok)
}

func TestCacheCorruptedFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 16, time.Hour)

	path := filepath.Join(dir, "main", "sales.orders.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := c.Get("main", "sales", "orders")
	require.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 16, time.Hour)
	require.NoError(t, c.Put(sampleSchema(time.Now())))

	c.Invalidate("main", "sales", "orders")
	_, ok := c.Get("main", "sales", "orders")
	require.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "main", "sales.orders.json"))
	require.True(t, os.IsNotExist(err))
}

func scriptInformationSchema(fake *drivertest.Fake) {
	fake.Script("information_schema.columns", drivertest.Result{
		Rows: []map[string]any{
			{"column_name": "id", "data_type": "BIGINT", "is_nullable": "NO", "ordinal_position": int64(1)},
			{"column_name": "status", "data_type": "STRING", "is_nullable": "YES", "ordinal_position": int64(2)},
		},
	})
	fake.Script("table_constraints", drivertest.Result{
		Rows: []map[string]any{{"column_name": "id"}},
	})
}

func newProvider(t *testing.T, fake *drivertest.Fake) *Provider {
	t.Helper()
	registry, err := queries.NewRegistry()
	require.NoError(t, err)
	cache := NewCache(t.TempDir(), 16, time.Hour)
	return NewProvider(cache, pool.New(fake, 2), registry)
}

func TestProviderFetchMergesColumnsAndKeys(t *testing.T) {
	fake := drivertest.NewFake()
	scriptInformationSchema(fake)
	p := newProvider(t, fake)

	s, err := p.GetTableSchema(context.Background(), "main.sales.orders")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "status"}, s.ColumnNames())
	require.True(t, s.Columns[0].IsPrimaryKey)
	require.False(t, s.Columns[0].Nullable)
	require.True(t, s.Columns[1].Nullable)
	require.Equal(t, 2, s.Columns[1].OrdinalPosition)

	// Fetch always runs on the service principal identity.
	for _, token := range fake.Connects() {
		require.Empty(t, token)
	}
}

func TestProviderCachesFetches(t *testing.T) {
	fake := drivertest.NewFake()
	scriptInformationSchema(fake)
	p := newProvider(t, fake)

	_, err := p.GetTableSchema(context.Background(), "main.sales.orders")
	require.NoError(t, err)
	first := len(fake.Calls())

	_, err = p.GetTableSchema(context.Background(), "main.sales.orders")
	require.NoError(t, err)
	require.Equal(t, first, len(fake.Calls()))
}

func TestProviderSingleFlight(t *testing.T) {
	fake := drivertest.NewFake()
	scriptInformationSchema(fake)
	p := newProvider(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GetTableSchema(context.Background(), "main.sales.orders")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// One columns query plus one primary keys query.
	require.Len(t, fake.Calls(), 2)
}

func TestProviderUnknownTable(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("information_schema.columns", drivertest.Result{Rows: nil})
	p := newProvider(t, fake)

	_, err := p.GetTableSchema(context.Background(), "main.sales.missing")
	require.Error(t, err)
	require.Equal(t, protocol.CatNotFound, protocol.CategoryOf(err))
}

func TestProviderRejectsBadRef(t *testing.T) {
	fake := drivertest.NewFake()
	p := newProvider(t, fake)

	_, err := p.GetTableSchema(context.Background(), "orders")
	require.Error(t, err)
	require.Equal(t, protocol.CatSecurity, protocol.CategoryOf(err))
}

func TestResolverNeedsResolution(t *testing.T) {
	r := NewResolver(nil)

	require.True(t, r.NeedsResolution(&protocol.OperationRequest{
		Operation: protocol.OpRead, Mode: protocol.ModeSingle,
	}))
	require.True(t, r.NeedsResolution(&protocol.OperationRequest{
		Operation: protocol.OpRead, Columns: []string{"*"},
	}))
	require.False(t, r.NeedsResolution(&protocol.OperationRequest{
		Operation: protocol.OpRead, Columns: []string{"id"},
	}))
	require.False(t, r.NeedsResolution(&protocol.OperationRequest{
		Operation: protocol.OpRead, Mode: protocol.ModeNamed,
	}))
	require.False(t, r.NeedsResolution(&protocol.OperationRequest{
		Operation: protocol.OpInsert,
	}))
}

func TestResolverResolve(t *testing.T) {
	fake := drivertest.NewFake()
	scriptInformationSchema(fake)
	r := NewResolver(newProvider(t, fake))

	res, err := r.Resolve(context.Background(), &protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "status"}, res.ColumnNames)
	require.Equal(t, "main.sales.orders", res.TableRef)
	require.True(t, res.Columns[0].IsPrimaryKey)
}
