// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// Postgres holds the PostgreSQL migrations in golang-migrate layout.
//
//go:embed postgres/*.sql
var Postgres embed.FS
