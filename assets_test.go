package vitessr

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestAssetsHandlerServesFiles(t *testing.T) {
	dir := t.TempDir()
	publicDir := filepath.Join(dir, "public")
	if err := os.MkdirAll(publicDir, 0755); err != nil {
		t.Fatalf("create public dir: %v", err)
	}

	assetContent := []byte("icon")
	if err := os.WriteFile(filepath.Join(publicDir, "favicon.ico"), assetContent, 0644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	nextStatus := http.StatusNoContent
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(nextStatus)
	})

	handler := AssetsHandler(next, nil, ProjectAssetRoots(os.DirFS(dir), "")...)

	request := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)

	body, err := io.ReadAll(response.Result().Body)
	if err != nil {
		t.Fatalf("read asset body: %v", err)
	}

	if response.Code != http.StatusOK {
		t.Fatalf("asset status: want 200, got %d", response.Code)
	}
	if string(body) != string(assetContent) {
		t.Fatalf("asset body mismatch: %q", string(body))
	}
	if got := response.Header().Get("Cache-Control"); got != "public, max-age=300" {
		t.Fatalf("cache control: want %q, got %q", "public, max-age=300", got)
	}
	if etag := response.Header().Get("ETag"); etag == "" {
		t.Fatalf("expected etag header")
	}
	if nextCalled {
		t.Fatalf("next handler should not run for asset request")
	}

	nextCalled = false
	fallbackResponse := httptest.NewRecorder()
	handler.ServeHTTP(fallbackResponse, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	if fallbackResponse.Code != nextStatus {
		t.Fatalf("fallback status: want %d, got %d", nextStatus, fallbackResponse.Code)
	}
	if !nextCalled {
		t.Fatalf("expected next handler for missing asset")
	}
}

func TestAssetsHandlerHashedAssetsCacheLonger(t *testing.T) {
	filesystem := fstest.MapFS{
		"public/logo-abcdef12.png": {Data: []byte("icon-hash")},
	}
	handler := AssetsHandler(http.NotFoundHandler(), nil, ProjectAssetRoots(filesystem, "")...)

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/logo-abcdef12.png", nil))

	if response.Code != http.StatusOK {
		t.Fatalf("asset status: want 200, got %d", response.Code)
	}
	if got := response.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Fatalf("cache control: want long cache, got %q", got)
	}
}

func TestAssetsHandlerServesClientOutput(t *testing.T) {
	filesystem := fstest.MapFS{
		"dist/client/assets/main.js":               {Data: []byte("console.log(1)")},
		"dist/client/.vite/manifest.json":          {Data: []byte(`{"src/main.ts": {"file": "assets/main.js"}}`)},
		"dist/client/assets/unlisted.js":           {Data: []byte("console.log(2)")},
		"dist/client/assets/client-5XGZQ3TI.js":    {Data: []byte("console.log(3)")},
		"dist/client/assets/chunk-only-letters.js": {Data: []byte("console.log(4)")},
	}
	manifest, err := ReadManifest(filesystem, "dist/client/"+ManifestFile)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	handler := AssetsHandler(http.NotFoundHandler(), manifest, ProjectAssetRoots(filesystem, DefaultClientOutDir)...)

	tests := []struct {
		path  string
		cache string
	}{
		{"/assets/main.js", "public, max-age=31536000, immutable"},
		{"/assets/client-5XGZQ3TI.js", "public, max-age=31536000, immutable"},
		{"/assets/unlisted.js", "public, max-age=300"},
		{"/assets/chunk-only-letters.js", "public, max-age=300"},
	}
	for _, tt := range tests {
		response := httptest.NewRecorder()
		handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if response.Code != http.StatusOK {
			t.Fatalf("%s: want 200, got %d", tt.path, response.Code)
		}
		if got := response.Header().Get("Cache-Control"); got != tt.cache {
			t.Errorf("%s: cache control want %q, got %q", tt.path, tt.cache, got)
		}
		if response.Header().Get("Last-Modified") == "" && response.Header().Get("ETag") == "" {
			t.Errorf("%s: missing validators", tt.path)
		}
	}
}

func TestAssetsHandlerPrefixAndMethods(t *testing.T) {
	filesystem := fstest.MapFS{"app.css": {Data: []byte("body{}")}}
	handler := AssetsHandler(http.NotFoundHandler(), nil, AssetRoot{Prefix: "/static/", FS: filesystem})

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if response.Code != http.StatusOK {
		t.Fatalf("prefixed asset: want 200, got %d", response.Code)
	}

	response = httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/app.css", nil))
	if response.Code != http.StatusNotFound {
		t.Fatalf("unprefixed asset: want 404, got %d", response.Code)
	}

	response = httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodPost, "/static/app.css", nil))
	if response.Code != http.StatusNotFound {
		t.Fatalf("post: want fallback 404, got %d", response.Code)
	}
}

func TestAssetsHandlerHandlesMissingNext(t *testing.T) {
	handler := AssetsHandler(nil, nil)

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if response.Code != http.StatusNotFound {
		t.Fatalf("want 404 from default next, got %d", response.Code)
	}
}

func TestIsHashedAsset(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"assets/main-abcdef12.js", true},
		{"assets/client-5XGZQ3TI.js", true},
		{"assets/main.abc123de.css", true},
		{"logo.png", false},
		{"assets/chunk-only-letters.js", false},
		{"12345678.js", false},
	}
	for _, tt := range tests {
		if got := isHashedAsset(tt.name); got != tt.want {
			t.Errorf("isHashedAsset(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeAssetPath(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"/":               "",
		"/../etc/passwd":  "",
		"/a/./b/../c.js":  "a/c.js",
		"/assets/main.js": "assets/main.js",
	}
	for in, want := range tests {
		if got := normalizeAssetPath(in); got != want {
			t.Errorf("normalizeAssetPath(%q) = %q, want %q", in, got, want)
		}
	}
}
