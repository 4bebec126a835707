// Package migrations embeds the auth database schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
