package sqlstore

import "embed"

// MigrationFS embeds the schema migrations shared by the SQLite and Postgres backends.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// MigrationDir is the directory inside MigrationFS holding the migration files.
const MigrationDir = "migrations"
