// Package migrations embeds the SQL schema migrations, one directory per
// database dialect.
package migrations

import "embed"

// FS holds the migration files under sqlite/ and postgres/.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
