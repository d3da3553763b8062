package vitessr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// EsbuildBuilder builds environments with esbuild. The client environment also gets a
// Vite-format manifest; every other environment is bundled for the server with the
// client manifest injected.
type EsbuildBuilder struct {
	Root     string
	Injector *ManifestInjector
	Minify   bool
	Logger   *Logger
}

type esbuildMetafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
		CSSBundle  string `json:"cssBundle"`
		Imports    []struct {
			Path     string `json:"path"`
			Kind     string `json:"kind"`
			External bool   `json:"external"`
		} `json:"imports"`
	} `json:"outputs"`
}

func (b *EsbuildBuilder) Build(ctx context.Context, env *Environment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if env.Name == ClientEnvironment {
		return b.buildClient(env)
	}
	return b.buildServer(env)
}

func (b *EsbuildBuilder) root() (string, error) {
	root := b.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return abs, nil
}

func (b *EsbuildBuilder) buildClient(env *Environment) error {
	log := loggerOrNop(b.Logger)
	root, err := b.root()
	if err != nil {
		return err
	}

	var entries []string
	for _, in := range env.Build.Input.Values() {
		entries = append(entries, strings.TrimPrefix(in, "/"))
	}
	if len(entries) == 0 {
		log.Info("client: no entries, skipped")
		return nil
	}

	outDir := env.Build.OutDir
	if outDir == "" {
		outDir = DefaultClientOutDir
	}
	absOut := absUnder(root, outDir)
	if err := os.MkdirAll(absOut, 0755); err != nil {
		return fmt.Errorf("make out dir: %w", err)
	}

	platform, err := esbuildPlatform(env.Build.Platform, api.PlatformBrowser)
	if err != nil {
		return fmt.Errorf("%s: %w", env.Name, err)
	}

	log.Start("building client: " + strings.Join(entries, ", "))
	result := api.Build(api.BuildOptions{
		EntryPoints:       entries,
		AbsWorkingDir:     root,
		Bundle:            true,
		Outdir:            absOut,
		Format:            api.FormatESModule,
		Splitting:         true,
		Platform:          platform,
		Write:             true,
		Metafile:          true,
		JSX:               api.JSXAutomatic,
		Target:            api.ES2020,
		EntryNames:        "assets/[name]-[hash]",
		ChunkNames:        "assets/[name]-[hash]",
		AssetNames:        "assets/[name]-[hash]",
		MinifyWhitespace:  b.Minify,
		MinifySyntax:      b.Minify,
		MinifyIdentifiers: b.Minify,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return fmt.Errorf("client build error: %s", formatMessage(result.Errors[0]))
	}

	if !env.Build.Manifest {
		log.Success("client built")
		return nil
	}

	manifest, err := manifestFromMetafile(result.Metafile, root, absOut)
	if err != nil {
		return err
	}
	if err := writeManifest(absOut, manifest); err != nil {
		return err
	}
	log.Success("client built: " + FormatPath(filepath.Join(absOut, filepath.FromSlash(ManifestFile))))
	return nil
}

func (b *EsbuildBuilder) buildServer(env *Environment) error {
	log := loggerOrNop(b.Logger)
	root, err := b.root()
	if err != nil {
		return err
	}

	entry := env.Build.SSR
	if entry == "" {
		if values := env.Build.Input.Values(); len(values) > 0 {
			entry = values[0]
		}
	}
	if entry == "" {
		return fmt.Errorf("%s: %w", env.Name, ErrNoEntries)
	}

	outDir := env.Build.OutDir
	if outDir == "" {
		outDir = path.Join("dist", env.Name)
	}

	injector := b.Injector
	if injector == nil {
		injector = &ManifestInjector{Root: root, Logger: b.Logger}
	}

	platform, err := esbuildPlatform(env.Build.Platform, api.PlatformNode)
	if err != nil {
		return fmt.Errorf("%s: %w", env.Name, err)
	}

	log.Start("building " + env.Name + ": " + entry)
	result := api.Build(api.BuildOptions{
		EntryPoints:      []string{strings.TrimPrefix(entry, "/")},
		AbsWorkingDir:    root,
		Bundle:           true,
		Outdir:           absUnder(root, outDir),
		Format:           api.FormatESModule,
		Platform:         platform,
		Packages:         api.PackagesExternal,
		Write:            true,
		JSX:              api.JSXAutomatic,
		Target:           api.ES2022,
		MinifyWhitespace: b.Minify,
		MinifySyntax:     b.Minify,
		Plugins:          []api.Plugin{injectManifestPlugin(injector)},
		LogLevel:         api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return fmt.Errorf("%s build error: %s", env.Name, formatMessage(result.Errors[0]))
	}
	log.Success(env.Name + " built")
	return nil
}

// injectManifestPlugin runs the injector on every script esbuild loads from disk.
func injectManifestPlugin(injector *ManifestInjector) api.Plugin {
	return api.Plugin{
		Name: "inject-manifest",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.[cm]?[jt]sx?$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					data, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					code, ok := injector.Transform(string(data), true)
					if !ok {
						return api.OnLoadResult{}, nil
					}
					return api.OnLoadResult{
						Contents:   &code,
						Loader:     loaderFor(args.Path),
						ResolveDir: filepath.Dir(args.Path),
					}, nil
				})
		},
	}
}

// manifestFromMetafile converts esbuild outputs into manifest chunks. Entry outputs are
// keyed by their source path, shared chunks by "_" plus their file name.
func manifestFromMetafile(metafile string, root string, absOut string) (Manifest, error) {
	var meta esbuildMetafile
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}

	rel := func(outPath string) (string, error) {
		r, err := filepath.Rel(absOut, absUnder(root, outPath))
		if err != nil {
			return "", fmt.Errorf("output rel: %w", err)
		}
		return filepath.ToSlash(r), nil
	}

	keys := make(map[string]string, len(meta.Outputs))
	outPaths := make([]string, 0, len(meta.Outputs))
	for outPath, out := range meta.Outputs {
		if strings.HasSuffix(outPath, ".map") {
			continue
		}
		outPaths = append(outPaths, outPath)
		if out.EntryPoint != "" {
			keys[outPath] = filepath.ToSlash(out.EntryPoint)
			continue
		}
		keys[outPath] = "_" + path.Base(filepath.ToSlash(outPath))
	}
	sort.Strings(outPaths)

	cssBundles := map[string]bool{}
	for _, out := range meta.Outputs {
		if out.CSSBundle != "" {
			cssBundles[out.CSSBundle] = true
		}
	}

	manifest := Manifest{}
	for _, outPath := range outPaths {
		out := meta.Outputs[outPath]
		if cssBundles[outPath] {
			continue
		}

		file, err := rel(outPath)
		if err != nil {
			return nil, err
		}
		chunk := ManifestChunk{File: file}
		if out.EntryPoint != "" {
			chunk.Src = keys[outPath]
			chunk.IsEntry = true
		}
		if out.CSSBundle != "" {
			css, err := rel(out.CSSBundle)
			if err != nil {
				return nil, err
			}
			chunk.CSS = []string{css}
		}
		for _, imp := range out.Imports {
			if imp.External || imp.Kind != "import-statement" {
				continue
			}
			if key, ok := keys[imp.Path]; ok {
				chunk.Imports = append(chunk.Imports, key)
			}
		}
		manifest[keys[outPath]] = chunk
	}
	return manifest, nil
}

func writeManifest(absOut string, manifest Manifest) error {
	target := filepath.Join(absOut, filepath.FromSlash(ManifestFile))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("make manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func absUnder(root string, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

func esbuildPlatform(name string, fallback api.Platform) (api.Platform, error) {
	switch strings.ToLower(name) {
	case "":
		return fallback, nil
	case "browser":
		return api.PlatformBrowser, nil
	case "node":
		return api.PlatformNode, nil
	case "neutral":
		return api.PlatformNeutral, nil
	default:
		return fallback, fmt.Errorf("unknown platform %q", name)
	}
}
