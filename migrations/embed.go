// Package migrations embeds the history store schema into the binary.
//
// The gateway runs its migrations at startup without needing SQL files
// on the filesystem - they're compiled into the executable. Importing
// this package for side effects registers the files:
//
//	import _ "github.com/WebThingsIO/webthing-go/migrations"
package migrations

import (
	"embed"

	"github.com/WebThingsIO/webthing-go/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// The embed directive above captures all .sql files in this directory.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
