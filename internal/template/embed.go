package template

import (
	"embed"
	"io/fs"
)

// Bundled templates are compiled into the binary so the bridge works
// without a populated user template directory.
//
//go:embed bundled
var bundledFS embed.FS

// BundledFS returns the compiled-in template set.
func BundledFS() fs.FS {
	sub, err := fs.Sub(bundledFS, "bundled")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return sub
}
