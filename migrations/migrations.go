// Package migrations embeds the SQL schema for the Postgres tenant directory.
package migrations

import "embed"

// FS holds the versioned up/down migrations read by cmd/migrate.
//
//go:embed *.sql
var FS embed.FS
