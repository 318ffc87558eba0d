// Package migrations embeds the SQL migrations for the local store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
