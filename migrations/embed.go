// Package migrations embeds Pulseline's SQL schema files so a fresh
// database can be brought up to date without shipping loose files
// alongside the binary.
package migrations

import "embed"

// Files holds every .up.sql migration in this directory.
// Pass it to database.Migrate at startup.
//
//go:embed *.sql
var Files embed.FS
