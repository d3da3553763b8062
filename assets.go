package vitessr

import (
	"crypto/sha1"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

// AssetRoot serves files of FS under URL prefix Prefix ("" for the site root).
type AssetRoot struct {
	Prefix string
	FS     fs.FS
}

// AssetsHandler serves static files before falling back to next. Roots are tried in
// order. Files listed in manifest, or named like hashed build output, are cached forever.
func AssetsHandler(next http.Handler, manifest Manifest, roots ...AssetRoot) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}

	var served []assetRoot
	for _, r := range roots {
		if r.FS == nil {
			continue
		}
		served = append(served, assetRoot{
			prefix:     strings.Trim(r.Prefix, "/"),
			fs:         r.FS,
			fileServer: http.FileServer(http.FS(r.FS)),
		})
	}
	if len(served) == 0 {
		return next
	}

	return &assetsHandler{
		next:   next,
		roots:  served,
		hashed: manifest.Files(),
	}
}

// ProjectAssetRoots returns public/ and the client output directory of a project
// rooted at filesystem.
func ProjectAssetRoots(filesystem fs.FS, clientOutDir string) []AssetRoot {
	var roots []AssetRoot
	if sub, err := fs.Sub(filesystem, "public"); err == nil {
		roots = append(roots, AssetRoot{FS: sub})
	}
	if clientOutDir == "" {
		clientOutDir = DefaultClientOutDir
	}
	if sub, err := fs.Sub(filesystem, path.Clean(clientOutDir)); err == nil {
		roots = append(roots, AssetRoot{FS: sub})
	}
	return roots
}

type assetsHandler struct {
	next   http.Handler
	roots  []assetRoot
	hashed map[string]struct{}
}

type assetRoot struct {
	prefix     string
	fs         fs.FS
	fileServer http.Handler
}

func (r assetRoot) match(assetPath string) (string, bool) {
	if r.prefix == "" {
		return assetPath, true
	}
	if assetPath == r.prefix {
		return "", true
	}
	prefix := r.prefix + "/"
	if !strings.HasPrefix(assetPath, prefix) {
		return "", false
	}
	return strings.TrimPrefix(assetPath, prefix), true
}

func (r assetRoot) stat(relPath string) (fs.FileInfo, bool) {
	if relPath == "" {
		return nil, false
	}
	info, err := fs.Stat(r.fs, relPath)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func (r assetRoot) etag(relPath string) string {
	data, err := fs.ReadFile(r.fs, relPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`"%x"`, sha1.Sum(data))
}

func (h *assetsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		h.next.ServeHTTP(w, req)
		return
	}

	assetPath := normalizeAssetPath(req.URL.Path)
	if assetPath == "" {
		h.next.ServeHTTP(w, req)
		return
	}

	for _, root := range h.roots {
		rel, ok := root.match(assetPath)
		if !ok {
			continue
		}
		info, ok := root.stat(rel)
		if !ok {
			continue
		}

		h.addCacheHeaders(w, root, rel, info.ModTime())
		cloned := req.Clone(req.Context())
		cloned.URL.Path = "/" + rel
		root.fileServer.ServeHTTP(w, cloned)
		return
	}

	h.next.ServeHTTP(w, req)
}

func (h *assetsHandler) addCacheHeaders(w http.ResponseWriter, root assetRoot, rel string, modTime time.Time) {
	cacheValue := "public, max-age=300"
	if _, ok := h.hashed[rel]; ok || isHashedAsset(rel) {
		cacheValue = "public, max-age=31536000, immutable"
	}
	w.Header().Set("Cache-Control", cacheValue)

	if etag := root.etag(rel); etag != "" {
		w.Header().Set("ETag", etag)
	}
	if !modTime.IsZero() {
		w.Header().Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	}
}

// isHashedAsset recognizes "name-<hash>.ext" and "name.<hash>.ext" where the hash is
// at least eight hex digits or an eight character base32 or base64url digest with a digit.
func isHashedAsset(assetPath string) bool {
	base := path.Base(assetPath)
	name := strings.TrimSuffix(base, path.Ext(base))
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '.' })
	for _, part := range parts[min(1, len(parts)):] {
		if looksLikeHash(part) {
			return true
		}
	}
	return false
}

func looksLikeHash(s string) bool {
	if len(s) < 8 {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		default:
			return false
		}
	}
	return digits > 0
}

func normalizeAssetPath(requestPath string) string {
	if requestPath == "" {
		return ""
	}
	clean := path.Clean(strings.TrimPrefix(requestPath, "/"))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") {
		return ""
	}
	return clean
}
