package handlers

import (
	"context"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// Metadata queries always run on the service principal identity: catalog
// browsing reflects what the gateway can see, not the end user.

// SchemaListCatalogs serves SCHEMA/LIST_CATALOGS.
func SchemaListCatalogs(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	return metadataQuery(ctx, env, ec, "schema.list_catalogs", nil)
}

// SchemaListSchemas serves SCHEMA/LIST_SCHEMAS within a catalog.
func SchemaListSchemas(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	if ec.Request.Catalog == "" {
		return nil, protocol.ValidationError(
			"Listing schemas requires a catalog.", "schema.list_schemas without catalog")
	}
	return metadataQuery(ctx, env, ec, "schema.list_schemas", map[string]any{
		"catalog": ec.Request.Catalog,
	})
}

// SchemaListTables serves SCHEMA/LIST_TABLES within a schema.
func SchemaListTables(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	req := ec.Request
	if req.Catalog == "" || req.SchemaName == "" {
		return nil, protocol.ValidationError(
			"Listing tables requires a catalog and schema.",
			"schema.list_tables without catalog or schema_name")
	}
	return metadataQuery(ctx, env, ec, "schema.list_tables", map[string]any{
		"catalog":     req.Catalog,
		"schema_name": req.SchemaName,
	})
}

// SchemaTableColumns serves SCHEMA/TABLE_COLUMNS as a tabular result.
func SchemaTableColumns(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	catalog, schemaName, table, err := tableParts(ec.Request)
	if err != nil {
		return nil, err
	}
	return metadataQuery(ctx, env, ec, "schema.table_columns", map[string]any{
		"catalog":     catalog,
		"schema_name": schemaName,
		"table_name":  table,
	})
}

// SchemaTableInfo serves SCHEMA/TABLE_INFO: the cached merged view of a
// table, columns and primary keys together, as a single object.
func SchemaTableInfo(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	if ec.Request.Table == "" {
		return nil, protocol.ValidationError(
			"Table info requires a table.", "schema.table_info without table")
	}
	s, err := env.Schemas.GetTableSchema(ctx, ec.Request.Table)
	if err != nil {
		return nil, err
	}

	o := &Outcome{Data: map[string]any{
		"catalog":      s.Catalog,
		"schema":       s.Schema,
		"table":        s.Table,
		"columns":      s.ColumnMetadata(),
		"primary_keys": s.PrimaryKeyColumns(),
		"fetched_at":   s.FetchedAt,
	}}
	o.Meta()["table_ref"] = s.TableRef()
	return o, nil
}

// SchemaInvalidate serves SCHEMA/INVALIDATE_TABLE_SCHEMA: drop the cached
// schema so the next read refetches it.
func SchemaInvalidate(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	if ec.Request.Table == "" {
		return nil, protocol.ValidationError(
			"Invalidation requires a table.", "schema.invalidate without table")
	}
	if err := env.Schemas.Invalidate(ec.Request.Table); err != nil {
		return nil, err
	}
	logging.Logger(ctx).WithField("table", ec.Request.Table).Info("table schema invalidated")
	return &Outcome{Data: map[string]any{"invalidated": ec.Request.Table}}, nil
}

// metadataQuery renders a manifest query and returns its rows as a
// tabular outcome in the request's data format.
func metadataQuery(ctx context.Context, env *Env, ec *ExecContext, key string, params map[string]any) (*Outcome, error) {
	def, err := env.Queries.Get(key)
	if err != nil {
		return nil, err
	}
	stmt, err := def.Render(params)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	conn, release, err := env.Pool.Lease(ctx, "")
	if err != nil {
		return nil, err
	}
	defer release()

	rows, cols, err := conn.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}
	return tabularOutcome(ec, rows, cols)
}

// tableParts splits the request's table reference, falling back to the
// catalog and schema_name fields plus a bare table name.
func tableParts(req *protocol.OperationRequest) (catalog, schemaName, table string, err error) {
	if req.Table != "" {
		if catalog, schemaName, table, err = sqlgen.ParseTableRef(req.Table); err == nil {
			return catalog, schemaName, table, nil
		}
		if req.Catalog != "" && req.SchemaName != "" {
			return req.Catalog, req.SchemaName, req.Table, nil
		}
		return "", "", "", err
	}
	return "", "", "", protocol.ValidationError(
		"Table columns require a table.", "schema.table_columns without table")
}
