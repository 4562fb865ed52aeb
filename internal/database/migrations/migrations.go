// Package migrations embeds the SQL schema migrations. The statements are
// kept portable across MySQL/MariaDB, SQLite and PostgreSQL.
package migrations

import "embed"

// FS holds every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
