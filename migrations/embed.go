// Package migrations ships the database schema as embedded goose
// migrations so the service binary can migrate itself at startup.
package migrations

import "embed"

// FS holds the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
