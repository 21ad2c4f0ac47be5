// Package migrations embeds the SQLite schema for the state persister.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
