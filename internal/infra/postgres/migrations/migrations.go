package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set of schema changes; each file registers itself
// under the version prefix of its name.
var Migrations = migrate.NewMigrations()
