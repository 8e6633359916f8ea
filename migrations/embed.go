// Package migrations embeds the agent's SQL migration files into the binary.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS holds the migration files at its root, ready for database.DB.Migrate.
var FS = files
