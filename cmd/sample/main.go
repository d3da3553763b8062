package main

import (
	"net/http"
	"os"
	"strings"

	vitessr "github.com/yusukebe/vite-ssr-components"
	"github.com/yusukebe/vite-ssr-components/cmd/sample/loader"
)

var logger = vitessr.NewLogger()

func main() {
	resolver := vitessr.NewResolver(".")
	resolver.Logger = logger
	resolver.Strict = true

	serve := func(load func(*http.Request) loader.Page) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			page := load(r)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := vitessr.RewriteHTML(resolver, strings.NewReader(page.HTML()), w); err != nil {
				logger.Error("rewrite "+r.URL.Path, err)
				http.Error(w, "render failed", http.StatusInternalServerError)
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", serve(loader.Home))
	mux.HandleFunc("GET /store/{store}/product/{product}", serve(loader.Product))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	handler := vitessr.AssetsHandler(mux, resolver.Loader.Load(), vitessr.ProjectAssetRoots(os.DirFS("."), "")...)

	logger.Start("Server running at http://localhost:8080")
	if err := http.ListenAndServe(":8080", handler); err != nil {
		logger.Error("serve", err)
		os.Exit(1)
	}
}
