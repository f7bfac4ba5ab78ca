// Package migrations embeds the goose SQL files for the relational queue
// backend so the binary carries them without a migrations directory on
// disk, grounded on the pack's embed.FS migration pattern.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
