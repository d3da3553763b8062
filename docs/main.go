package main

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	vitessr "github.com/yusukebe/vite-ssr-components"
	"github.com/yusukebe/vite-ssr-components/docs/loader"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed content/*.md
var content embed.FS

func main() {
	logger := vitessr.NewLogger()

	cfg, err := vitessr.LoadConfig(nil, "")
	if err != nil {
		logger.Error("load config", err)
		os.Exit(1)
	}

	pipeline := vitessr.NewPipeline(cfg, logger)
	resolver := pipeline.Resolver()

	funcs := vitessr.TemplateFuncs(resolver)
	funcs["liveReload"] = func() template.HTML {
		if cfg.Production || pipeline.Hub == nil {
			return ""
		}
		return pipeline.Hub.ClientTag(cfg.Dev.ReloadPath)
	}
	layout := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templates, "templates/layout.html"))

	pages, err := fs.Sub(content, "content")
	if err != nil {
		logger.Error("content dir", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{slug...}", func(w http.ResponseWriter, r *http.Request) {
		page := loader.Load(pages, r.PathValue("slug"))
		if !page.Found {
			w.WriteHeader(http.StatusNotFound)
		}
		if err := layout.Execute(w, page); err != nil {
			logger.Error("render "+page.Slug, err)
		}
	})
	if pipeline.Hub != nil && !cfg.Production {
		mux.Handle("GET "+cfg.Dev.ReloadPath, pipeline.Hub)
		go func() {
			if err := vitessr.Watch(context.Background(), cfg.Root, pipeline.HotReload); err != nil {
				logger.Error("watch", err)
			}
		}()
	}

	manifest := resolver.Loader.Load()
	roots := vitessr.ProjectAssetRoots(os.DirFS(cfg.Root), cfg.Client.OutDir)
	handler := vitessr.AssetsHandler(mux, manifest, roots...)

	logger.Start("Running @ http://localhost:8080")
	if err := http.ListenAndServe(":8080", handler); err != nil {
		logger.Error("serve", err)
		os.Exit(1)
	}
}
