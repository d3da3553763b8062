package vitessr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
)

// ManifestChunk is one entry of a Vite-format build manifest.
type ManifestChunk struct {
	File           string   `json:"file" yaml:"file"`
	Src            string   `json:"src,omitempty" yaml:"src,omitempty"`
	Name           string   `json:"name,omitempty" yaml:"name,omitempty"`
	IsEntry        bool     `json:"isEntry,omitempty" yaml:"isEntry,omitempty"`
	IsDynamicEntry bool     `json:"isDynamicEntry,omitempty" yaml:"isDynamicEntry,omitempty"`
	Imports        []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	DynamicImports []string `json:"dynamicImports,omitempty" yaml:"dynamicImports,omitempty"`
	CSS            []string `json:"css,omitempty" yaml:"css,omitempty"`
	Assets         []string `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// Manifest maps source-relative keys (no leading slash) to build outputs.
type Manifest map[string]ManifestChunk

// ManifestFile is where a client build writes its manifest, relative to the output directory.
const ManifestFile = ".vite/manifest.json"

// ParseManifest decodes manifest JSON.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: null document", ErrInvalidManifest)
	}
	return m, nil
}

// ReadManifest reads and decodes the manifest stored at name in filesystem.
func ReadManifest(filesystem fs.FS, name string) (Manifest, error) {
	data, err := fs.ReadFile(filesystem, path.Clean(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Lookup returns the chunk for a logical path such as "/src/client.tsx".
func (m Manifest) Lookup(logicalPath string) (ManifestChunk, bool) {
	if m == nil {
		return ManifestChunk{}, false
	}
	chunk, ok := m[manifestKey(logicalPath)]
	return chunk, ok
}

// Files lists every output file the manifest references, css included.
func (m Manifest) Files() map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for _, chunk := range m {
		if chunk.File != "" {
			out[chunk.File] = struct{}{}
		}
		for _, css := range chunk.CSS {
			out[css] = struct{}{}
		}
		for _, asset := range chunk.Assets {
			out[asset] = struct{}{}
		}
	}
	return out
}

// mergeManifests copies every manifest into one; later arguments win on key collisions.
func mergeManifests(manifests ...Manifest) Manifest {
	var out Manifest
	for _, m := range manifests {
		if m == nil {
			continue
		}
		if out == nil {
			out = Manifest{}
		}
		maps.Copy(out, m)
	}
	return out
}
