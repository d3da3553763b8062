package vitessr

import (
	"context"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ManifestContentEnv carries an embedded manifest payload for deployments without a dist tree.
const ManifestContentEnv = "VITE_MANIFEST_CONTENT"

// DefaultModuleEvalTimeout bounds evaluation of a module map.
const DefaultModuleEvalTimeout = 2 * time.Second

// manifestSearchDepth is how many directory levels below Dir are searched.
const manifestSearchDepth = 3

// ManifestLoader obtains the manifest at runtime. Sources are tried in order:
// Content, Modules, then a search of FS under Dir. The first that yields a manifest wins.
type ManifestLoader struct {
	// Content is a JSON payload. NewManifestLoader fills it from VITE_MANIFEST_CONTENT.
	Content string
	// Modules is a module map in the shape the injector emits.
	Modules string
	FS      fs.FS
	Dir     string
	// EvalTimeout bounds evaluation of Modules. Zero means DefaultModuleEvalTimeout.
	EvalTimeout time.Duration
	// Cache keeps the first loaded manifest for the lifetime of the loader.
	Cache  bool
	Logger *Logger

	mu     sync.Mutex
	cached Manifest
}

// NewManifestLoader returns a loader rooted at root that honors VITE_MANIFEST_CONTENT.
func NewManifestLoader(root string) *ManifestLoader {
	if root == "" {
		root = "."
	}
	return &ManifestLoader{
		Content: os.Getenv(ManifestContentEnv),
		FS:      os.DirFS(root),
		Dir:     "dist",
	}
}

// Load returns the manifest or nil when none can be found. It never fails.
func (l *ManifestLoader) Load() Manifest {
	if l == nil {
		return nil
	}
	if l.Cache {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.cached != nil {
			return l.cached
		}
	}

	m := l.load()
	if l.Cache && m != nil {
		l.cached = m
	}
	return m
}

func (l *ManifestLoader) load() Manifest {
	log := loggerOrNop(l.Logger)

	if l.Content != "" {
		m, err := ParseManifest([]byte(l.Content))
		if err == nil {
			return m
		}
		log.Warn("failed to parse embedded manifest", "", err)
	}

	if l.Modules != "" {
		timeout := l.EvalTimeout
		if timeout <= 0 {
			timeout = DefaultModuleEvalTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		m, err := ParseManifestModules(ctx, l.Modules)
		cancel()
		if err == nil {
			return m
		}
		log.Warn("failed to evaluate manifest modules", "", err)
	}

	return l.search(log)
}

// search merges every manifest found under Dir, shallow directories first, so deeper
// manifests overwrite shallower ones on key collisions.
func (l *ManifestLoader) search(log *Logger) Manifest {
	if l.FS == nil {
		return nil
	}
	dir := l.Dir
	if dir == "" {
		dir = "dist"
	}

	var found []Manifest
	for depth := 0; depth <= manifestSearchDepth; depth++ {
		matches, err := doublestar.Glob(l.FS, searchPattern(dir, depth))
		if err != nil {
			log.Warn("failed to search manifests", dir, err)
			continue
		}
		for _, name := range matches {
			m, err := ReadManifest(l.FS, name)
			if err != nil {
				log.Warn("failed to read manifest", name, err)
				continue
			}
			log.Debug("loaded manifest " + name)
			found = append(found, m)
		}
	}
	return mergeManifests(found...)
}

func searchPattern(dir string, depth int) string {
	parts := []string{dir}
	for range depth {
		parts = append(parts, "*")
	}
	parts = append(parts, ManifestFile)
	return path.Join(parts...)
}
