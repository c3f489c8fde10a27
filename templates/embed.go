// Package templates embeds the files written by `contentbook init`.
package templates

import "embed"

//go:embed config.yaml book.yaml
var FS embed.FS
