// Package sql embeds the schema migrations for the tables this service owns.
package sql

import "embed"

// Migrations holds the SQL migration files, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
