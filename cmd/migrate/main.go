// Command migrate applies the embedded schema migrations to a Postgres
// DATABASE_URL via golang-migrate. sqlite deployments never need this: the
// sqlite engine bootstraps its tiny schema inline on every Open.
package main

import (
	"os"
	"strings"

	"github.com/escossio/sandbox-orchestrator/internal/store"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Stderr.WriteString("migrate: DATABASE_URL is required\n")
		os.Exit(1)
	}
	if strings.HasPrefix(databaseURL, "sqlite://") {
		os.Stderr.WriteString("migrate: sqlite engine has no migration path; its schema bootstraps inline\n")
		os.Exit(1)
	}

	if err := store.Migrate(databaseURL); err != nil {
		os.Stderr.WriteString("migrate: " + err.Error() + "\n")
		os.Exit(1)
	}
	os.Stdout.WriteString("migrate: schema is up to date\n")
}
