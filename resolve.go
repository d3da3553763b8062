package vitessr

import (
	"os"
	"sync"
)

// AssetKind selects which resolution rule applies.
type AssetKind int

const (
	// AssetHref keeps relative paths relative; only root-absolute paths get the base URL.
	AssetHref AssetKind = iota
	// AssetSrc always prefixes the base URL and collects companion stylesheets.
	AssetSrc
)

// AssetReference is a single resolution request. Zero fields fall back to the Resolver.
type AssetReference struct {
	Path       string
	Manifest   Manifest
	Production *bool
	BaseURL    string
}

// ResolvedAsset is the outcome of a successful resolution. In development URL is the
// logical path unchanged and CSS is empty.
type ResolvedAsset struct {
	URL string
	CSS []string
}

// Resolver maps logical asset paths to built files.
type Resolver struct {
	Production bool
	BaseURL    string
	Manifest   Manifest
	// Loader is consulted when neither the reference nor the resolver carries a manifest.
	Loader *ManifestLoader
	// Strict logs every production miss as a warning.
	Strict bool
	Logger *Logger
}

// NewResolver returns a resolver using the process production flag and a default loader.
func NewResolver(root string) *Resolver {
	loader := NewManifestLoader(root)
	loader.Cache = true
	return &Resolver{
		Production: DefaultProduction(),
		BaseURL:    "/",
		Loader:     loader,
	}
}

var defaultProduction = sync.OnceValue(func() bool {
	return os.Getenv("NODE_ENV") == "production"
})

// DefaultProduction reports whether NODE_ENV is "production". It is read once.
func DefaultProduction() bool {
	return defaultProduction()
}

// ResolveHref resolves a stylesheet or link target.
func (r *Resolver) ResolveHref(logicalPath string) (string, bool) {
	asset, ok := r.Resolve(AssetHref, AssetReference{Path: logicalPath})
	return asset.URL, ok
}

// ResolveSrc resolves a script source together with its stylesheets.
func (r *Resolver) ResolveSrc(logicalPath string) (ResolvedAsset, bool) {
	return r.Resolve(AssetSrc, AssetReference{Path: logicalPath})
}

// Resolve applies ref's overrides and resolves it. ok is false when the path is empty
// or, in production, when the manifest is missing or has no entry for the path.
func (r *Resolver) Resolve(kind AssetKind, ref AssetReference) (ResolvedAsset, bool) {
	if ref.Path == "" {
		return ResolvedAsset{}, false
	}

	production := r.production()
	if ref.Production != nil {
		production = *ref.Production
	}
	if !production {
		return ResolvedAsset{URL: ref.Path}, true
	}

	base := ref.BaseURL
	if base == "" {
		base = r.baseURL()
	}

	manifest := ref.Manifest
	if manifest == nil {
		manifest = r.manifest()
	}

	asset, ok := resolveFromManifest(kind, ref.Path, manifest, base)
	if !ok && r != nil && r.Strict {
		loggerOrNop(r.Logger).Warn("asset not found in manifest", ref.Path, nil)
	}
	return asset, ok
}

func resolveFromManifest(kind AssetKind, logicalPath string, manifest Manifest, base string) (ResolvedAsset, bool) {
	chunk, ok := manifest.Lookup(logicalPath)
	if !ok || chunk.File == "" {
		return ResolvedAsset{}, false
	}

	prefix := EnsureTrailingSlash(base)
	if kind == AssetHref {
		url := chunk.File
		if len(logicalPath) > 0 && logicalPath[0] == '/' {
			url = prefix + chunk.File
		}
		return ResolvedAsset{URL: url}, true
	}

	css := make([]string, 0, len(chunk.CSS))
	for _, file := range chunk.CSS {
		css = append(css, prefix+file)
	}
	return ResolvedAsset{URL: prefix + chunk.File, CSS: css}, true
}

func (r *Resolver) production() bool {
	if r == nil {
		return DefaultProduction()
	}
	return r.Production
}

func (r *Resolver) baseURL() string {
	if r == nil || r.BaseURL == "" {
		return "/"
	}
	return r.BaseURL
}

func (r *Resolver) manifest() Manifest {
	if r == nil {
		return nil
	}
	if r.Manifest != nil {
		return r.Manifest
	}
	return r.Loader.Load()
}
