// Package migrations embeds the Postgres schema migrations so deployments
// can apply them without shipping the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
