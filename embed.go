package replog

import "embed"

//go:embed web/dist
var WebFS embed.FS
