// Package migrations embeds the SQLite schema for counter state.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
