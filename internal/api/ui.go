package api

import (
	_ "embed"
	"net/http"
)

//go:embed ui/index.html
var indexHTML []byte

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(indexHTML)
}
