// Package migrations compiles the SQL schema migrations into the hub
// binary, so a deployment is a single executable with no sidecar
// files. Importing the package (blank import in cmd/amberhub) hands
// the embedded filesystem to the database migration runner.
package migrations

import (
	"embed"

	"github.com/amberhub/amber-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	// Paths inside an embed.FS are relative to this directory.
	database.MigrationsDir = "."
}
