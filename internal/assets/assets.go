package assets

import (
	"embed"
)

// Migrations
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Templates
//
//go:embed templates/*.html
var Templates embed.FS
