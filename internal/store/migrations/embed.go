// Package migrations embeds the SQLite schema for the store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
