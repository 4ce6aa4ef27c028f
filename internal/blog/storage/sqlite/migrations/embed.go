// Package migrations embeds SQLite schema migrations for blog storage.
package migrations

import "embed"

// EventsFS contains migrations for the event journal database.
//
//go:embed events/*.sql
var EventsFS embed.FS

// ViewsFS contains migrations for the read-model database.
//
//go:embed views/*.sql
var ViewsFS embed.FS
