// Package migrations carries the SQL schema applied by the migrate command.
package migrations

import "embed"

// FS holds every *.sql file, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
