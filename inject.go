package vitessr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestPlaceholder is replaced in server code by the client manifest.
const ManifestPlaceholder = `"__VITE_MANIFEST_CONTENT__"`

// ManifestInjector embeds the client manifest into server-targeted code.
type ManifestInjector struct {
	Root         string
	ClientOutDir string
	Logger       *Logger
}

// ManifestPath is the client manifest the injector reads.
func (i *ManifestInjector) ManifestPath() string {
	outDir := i.ClientOutDir
	if outDir == "" {
		outDir = DefaultClientOutDir
	}
	if filepath.IsAbs(outDir) {
		return filepath.Join(outDir, filepath.FromSlash(ManifestFile))
	}
	return filepath.Join(i.Root, outDir, filepath.FromSlash(ManifestFile))
}

// Transform replaces every placeholder in ssr code with a module map holding the
// manifest. ok is false when code was left untouched: client code, no placeholder,
// or no readable manifest.
func (i *ManifestInjector) Transform(code string, ssr bool) (string, bool) {
	if !ssr || !strings.Contains(code, ManifestPlaceholder) {
		return code, false
	}

	manifestPath := i.ManifestPath()
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		loggerOrNop(i.Logger).Debug("manifest not injected: " + err.Error())
		return code, false
	}

	replacement := manifestModuleMap(strings.TrimSpace(string(data)))
	return strings.ReplaceAll(code, ManifestPlaceholder, replacement), true
}

func manifestModuleMap(manifestJSON string) string {
	return fmt.Sprintf(`{ %q: { default: %s } }`, ManifestModuleKey, manifestJSON)
}
