// Package web embeds the single-page chat client.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var index []byte

func ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(index)
}
