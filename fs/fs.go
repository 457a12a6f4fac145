package appfs

import "embed"

// FS holds the database migrations and the email/page templates.
//
//go:embed migrations all:templates
var FS embed.FS

const (
	PostgresMigrationsDir = "migrations/postgres"
	SQLiteMigrationsDir   = "migrations/sqlite"
	EmailTemplatesDir     = "templates/email"
	PageTemplatesDir      = "templates/pages"
)
