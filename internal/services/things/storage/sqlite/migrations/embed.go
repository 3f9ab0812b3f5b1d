package migrations

import "embed"

// FS contains embedded SQLite migrations for the thing journal.
//
//go:embed *.sql
var FS embed.FS
