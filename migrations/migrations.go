// Package migrations embeds the PostgreSQL schema files applied by cmd/migrate.
package migrations

import "embed"

// FS holds NNN_name.up.sql, 000_drop_all.sql and 000_consolidated.sql.
//
//go:embed *.sql
var FS embed.FS
