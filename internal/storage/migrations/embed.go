// Package migrations embeds the goose schema migrations for each database driver.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
