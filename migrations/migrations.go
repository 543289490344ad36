// Package migrations embeds the schema migration files, so a deployed binary
// carries its own schema and never depends on a migrations directory being
// present on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
