// Package database_size exposes the physical size of the node's Postgres
// database through a small precompile. Operators watch disk growth through
// the SQL surface instead of shelling into the host. Everything here is
// node-local: the ext_ schema prefix keeps the helper functions out of
// consensus, and the read methods report whatever this machine's Postgres
// says, which may differ across nodes mid-sync.
package database_size

import (
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/common"
	"github.com/trufnetwork/kwil-db/core/types"
	"github.com/trufnetwork/kwil-db/extensions/precompiles"
	"github.com/trufnetwork/kwil-db/node/types/sql"
)

// ExtensionName is the precompile namespace.
const ExtensionName = "database_size"

// schemaName holds the helper SQL functions. It cannot share a name with
// the extension namespace, and the ext_ prefix keeps it out of consensus.
const schemaName = "ext_database_size"

func initialize(ctx context.Context, service *common.Service, db sql.DB, alias string, metadata map[string]any) (precompiles.Precompile, error) {
	return precompiles.Precompile{
		Methods: []precompiles.Method{
			sizeMethod(),
			sizePrettyMethod(),
		},
		OnStart: func(ctx context.Context, app *common.App) error {
			if err := createHelperFunctions(ctx, app.DB); err != nil {
				return fmt.Errorf("setup %s schema: %w", schemaName, err)
			}
			if app.Service != nil && app.Service.Logger != nil {
				app.Service.Logger.New(ExtensionName).Info("database size probe ready", "alias", alias)
			}
			return nil
		},
	}, nil
}

func sizeMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "get_database_size",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters:      []precompiles.PrecompileValue{},
		Returns: &precompiles.MethodReturn{
			IsTable: false,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("database_size", types.IntType, false),
			},
		},
		Handler: handleSize,
	}
}

func sizePrettyMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "get_database_size_pretty",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters:      []precompiles.PrecompileValue{},
		Returns: &precompiles.MethodReturn{
			IsTable: false,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("database_size_pretty", types.TextType, false),
			},
		},
		Handler: handleSizePretty,
	}
}

func handleSize(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	size, err := DatabaseSize(ctx.TxContext.Ctx, app.DB)
	if err != nil {
		return err
	}
	return resultFn([]any{size})
}

func handleSizePretty(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	pretty, err := DatabaseSizePretty(ctx.TxContext.Ctx, app.DB)
	if err != nil {
		return err
	}
	return resultFn([]any{pretty})
}

// createHelperFunctions installs SQL wrappers around pg_database_size so
// operators can also probe the size from plain psql sessions.
func createHelperFunctions(ctx context.Context, db sql.DB) error {
	if _, err := db.Execute(ctx, `CREATE SCHEMA IF NOT EXISTS `+schemaName); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	sizeFn := `
		CREATE OR REPLACE FUNCTION ` + schemaName + `.get_database_size()
		RETURNS BIGINT
		LANGUAGE sql
		AS $$
			SELECT pg_database_size(current_database())::BIGINT;
		$$;
	`
	if _, err := db.Execute(ctx, sizeFn); err != nil {
		return fmt.Errorf("create get_database_size function: %w", err)
	}

	prettyFn := `
		CREATE OR REPLACE FUNCTION ` + schemaName + `.get_database_size_pretty()
		RETURNS TEXT
		LANGUAGE sql
		AS $$
			SELECT pg_size_pretty(pg_database_size(current_database()))::TEXT;
		$$;
	`
	if _, err := db.Execute(ctx, prettyFn); err != nil {
		return fmt.Errorf("create get_database_size_pretty function: %w", err)
	}

	return nil
}

// DatabaseSize reports the total on-disk size of the current database in
// bytes.
func DatabaseSize(ctx context.Context, db sql.DB) (int64, error) {
	result, err := db.Execute(ctx, "SELECT pg_database_size(current_database())")
	if err != nil {
		return 0, fmt.Errorf("query database size: %w", err)
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, fmt.Errorf("database size query returned no rows")
	}
	size, ok := result.Rows[0][0].(int64)
	if !ok {
		return 0, fmt.Errorf("database size is %T, want int64", result.Rows[0][0])
	}
	return size, nil
}

// DatabaseSizePretty reports the database size in Postgres pretty form,
// for example "142 MB".
func DatabaseSizePretty(ctx context.Context, db sql.DB) (string, error) {
	result, err := db.Execute(ctx, "SELECT pg_size_pretty(pg_database_size(current_database()))")
	if err != nil {
		return "", fmt.Errorf("query pretty database size: %w", err)
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return "", fmt.Errorf("pretty database size query returned no rows")
	}
	pretty, ok := result.Rows[0][0].(string)
	if !ok {
		return "", fmt.Errorf("pretty database size is %T, want string", result.Rows[0][0])
	}
	return pretty, nil
}
