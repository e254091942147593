package schema

import "embed"

// Postgres contains the embedded Postgres schema files.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite contains the embedded SQLite schema files.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
