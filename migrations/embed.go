// Package migrations embeds the SQL schema migrations so binaries can apply
// them without a migrations directory on disk.
package migrations

import "embed"

// Files holds every *.up.sql and *.down.sql migration
//
//go:embed *.sql
var Files embed.FS
