package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/pool"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// Provider serves table schemas from the cache, fetching misses from
// information_schema over the service principal connection. Concurrent
// misses for the same table share one fetch.
type Provider struct {
	cache    *Cache
	pool     *pool.Pool
	registry *queries.Registry
	group    singleflight.Group
	now      func() time.Time
}

// NewProvider wires the provider to its cache, pool, and query registry.
func NewProvider(cache *Cache, p *pool.Pool, registry *queries.Registry) *Provider {
	return &Provider{cache: cache, pool: p, registry: registry, now: time.Now}
}

// GetTableSchema returns the schema of a fully qualified table, from
// cache or a fresh information_schema fetch.
func (p *Provider) GetTableSchema(ctx context.Context, tableRef string) (*TableSchema, error) {
	catalog, schemaName, table, err := sqlgen.ParseTableRef(tableRef)
	if err != nil {
		return nil, err
	}

	if s, ok := p.cache.Get(catalog, schemaName, table); ok {
		return s, nil
	}

	v, err, _ := p.group.Do(tableRef, func() (any, error) {
		// A concurrent fetch may have landed while this call waited.
		if s, ok := p.cache.Get(catalog, schemaName, table); ok {
			return s, nil
		}
		s, err := p.fetch(ctx, catalog, schemaName, table)
		if err != nil {
			return nil, err
		}
		if putErr := p.cache.Put(s); putErr != nil {
			logging.Logger(ctx).WithError(putErr).Warn("schema cache write failed")
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TableSchema), nil
}

// fetch merges schema.table_columns and schema.primary_keys into one
// TableSchema, always over the service principal identity.
func (p *Provider) fetch(ctx context.Context, catalog, schemaName, table string) (*TableSchema, error) {
	ref := cacheKey(catalog, schemaName, table)
	log := logging.Logger(ctx).WithField("table", ref)
	log.Debug("fetching table schema from information_schema")

	params := map[string]any{
		"catalog":     catalog,
		"schema_name": schemaName,
		"table_name":  table,
	}

	columnsDef, err := p.registry.Get("schema.table_columns")
	if err != nil {
		return nil, err
	}
	pkDef, err := p.registry.Get("schema.primary_keys")
	if err != nil {
		return nil, err
	}

	conn, release, err := p.pool.Lease(ctx, "")
	if err != nil {
		return nil, err
	}
	defer release()

	colRows, _, err := conn.Query(ctx, columnsDef.SQL, params)
	if err != nil {
		return nil, protocol.MetadataAccessError(err, ref)
	}
	if len(colRows) == 0 {
		return nil, protocol.NotFoundError(
			"Table not found.",
			fmt.Sprintf("information_schema has no columns for %s", ref)).
			WithDetail("table_ref", ref)
	}

	pkRows, _, err := conn.Query(ctx, pkDef.SQL, params)
	if err != nil {
		return nil, protocol.MetadataAccessError(err, ref)
	}
	pkCols := map[string]bool{}
	for _, row := range pkRows {
		if name, ok := row["column_name"].(string); ok {
			pkCols[name] = true
		}
	}

	columns := make([]Column, 0, len(colRows))
	for i, row := range colRows {
		name, _ := row["column_name"].(string)
		dataType, _ := row["data_type"].(string)
		columns = append(columns, Column{
			Name:            name,
			DataType:        dataType,
			Nullable:        truthy(row["is_nullable"]),
			IsPrimaryKey:    pkCols[name],
			OrdinalPosition: ordinal(row["ordinal_position"], i+1),
		})
	}

	log.WithField("columns", len(columns)).Debug("table schema fetched")
	return &TableSchema{
		Catalog:   catalog,
		Schema:    schemaName,
		Table:     table,
		Columns:   columns,
		FetchedAt: p.now(),
	}, nil
}

// Invalidate drops a table's cached schema.
func (p *Provider) Invalidate(tableRef string) error {
	catalog, schemaName, table, err := sqlgen.ParseTableRef(tableRef)
	if err != nil {
		return err
	}
	p.cache.Invalidate(catalog, schemaName, table)
	return nil
}

// truthy interprets information_schema's is_nullable, which arrives as
// YES/NO text on Databricks and as a boolean elsewhere.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToUpper(strings.TrimSpace(x))
		return s == "YES" || s == "TRUE" || s == "1"
	default:
		return false
	}
}

func ordinal(v any, fallback int) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return fallback
	}
}
