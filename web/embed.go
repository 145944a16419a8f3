// Package web carries the dashboard's HTML templates and browser assets.
package web

import "embed"

// Templates holds the layouts, partials and pages parsed by view.Engine.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds the stylesheet and dashboard.js served under /static/.
//
//go:embed static/css static/js
var Static embed.FS
