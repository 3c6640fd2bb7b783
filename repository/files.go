package repository

import (
	"embed"
	"io/fs"

	"github.com/goliatone/go-workshop"
)

// MigrationsLabel names the embedded migration source in reports.
const MigrationsLabel = "data/sql/migrations"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsFS returns the SQL migrations, rooted at the migrations
// directory. The statements run on both postgres and sqlite.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, MigrationsLabel)
	if err != nil {
		panic(err)
	}
	return sub
}

// Models lists the bun models backed by the migrations.
func Models() []any {
	return []any{
		(*Account)(nil),
		(*AuthSession)(nil),
		(*PasswordReset)(nil),
		(*workshop.Profile)(nil),
	}
}
