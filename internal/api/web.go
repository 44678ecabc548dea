package api

import (
	"embed"
	"io/fs"
	"net/http"
)

// Embed the web client.
//
//go:embed web
var embeddedWeb embed.FS

// registerWebRoutes serves the single-page client at the root.
func registerWebRoutes(mux *http.ServeMux) {
	sub, err := fs.Sub(embeddedWeb, "web")
	if err != nil {
		// embed paths are fixed at compile time
		panic(err)
	}
	fileServer := http.FileServer(http.FS(sub))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	}))
}
