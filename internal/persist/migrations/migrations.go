// Package migrations embeds the goose SQL migration files for the
// persistence store.
package migrations

import "embed"

// FS holds the embedded *.sql migration files, passed to goose.SetBaseFS.
//
//go:embed *.sql
var FS embed.FS
