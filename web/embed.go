// Package web embeds the chat page (dist/) and serves it for every path the
// API does not claim.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reserved prefixes never fall back to the page, so a mistyped API call gets
// a 404 instead of HTML.
var reserved = []string{"api/", "ws/"}

// SPAHandler serves the embedded chat page.
func SPAHandler() http.Handler {
	pages, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return spaHandler(pages)
}

func spaHandler(pages fs.FS) http.Handler {
	files := http.FileServer(http.FS(pages))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		for _, prefix := range reserved {
			if strings.HasPrefix(name, prefix) {
				http.NotFound(w, r)
				return
			}
		}

		if name != "" && exists(pages, name) {
			files.ServeHTTP(w, r)
			return
		}

		// The page must be revalidated so a redeploy is picked up.
		w.Header().Set("Cache-Control", "no-cache")
		r.URL.Path = "/"
		files.ServeHTTP(w, r)
	})
}

func exists(pages fs.FS, name string) bool {
	f, err := pages.Open(name)
	if err != nil {
		return false
	}
	if err := f.Close(); err != nil {
		slog.Debug("web: failed to close embedded file", "path", name, "error", err)
	}
	return true
}
