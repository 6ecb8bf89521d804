// Package appfs exposes the app's embedded static files.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_base.txt assets/templates/email/_base.gohtml
var FS embed.FS
