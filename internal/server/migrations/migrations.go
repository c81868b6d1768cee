// Package migrations embeds the PostgreSQL schema of the device service.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
