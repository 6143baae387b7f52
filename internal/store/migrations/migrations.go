// Package migrations embeds the SQL schema sets applied by store.Migrate.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed hub/*.sql local/*.sql
var files embed.FS

// Hub is the schema of the shared real-time tree.
var Hub = sub("hub")

// Local is the schema of a profile's device-local database.
var Local = sub("local")

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return f
}
