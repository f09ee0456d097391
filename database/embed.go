// Package database embed dosyası — migration SQL dosyalarını binary'ye gömer.
//
// Go'nun embed paketi derleme zamanında dosyaları binary'nin içine gömer.
// Deploy edilen binary yanında migration dosyalarına ihtiyaç duymaz.
package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations, gömülü migration dosyalarını migrations/ alt dizini
// soyulmuş halde döner. database.New'un beklediği fs.FS budur.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// embed derleme zamanında sabitlendiği için buraya düşmek imkânsızdır
		panic(err)
	}
	return sub
}
