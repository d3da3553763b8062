package vitessr

import (
	"context"
	"fmt"
	"path/filepath"
)

// Stage names, in the order a pipeline runs them.
const (
	StageAutoEntry        = "auto-entry"
	StageHotReload        = "hot-reload"
	StageInjectManifest   = "inject-manifest"
	StageClientFirstBuild = "client-first-build"
)

// Pipeline wires entry detection, hot reload, manifest injection and build ordering
// for one project.
type Pipeline struct {
	Config   *Config
	Detector *EntryDetector
	// HotReload is nil when hot reload is disabled.
	HotReload *HotReload
	Hub       *ReloadHub
	Injector  *ManifestInjector
	Builder   Builder
	Logger    *Logger
}

// NewPipeline builds a pipeline from cfg. A nil logger logs nothing.
func NewPipeline(cfg *Config, logger *Logger) *Pipeline {
	logger = loggerOrNop(logger)
	root := cfg.Root

	p := &Pipeline{
		Config: cfg,
		Detector: &EntryDetector{
			Root:        root,
			Patterns:    cfg.BuildAssets.Patterns,
			Components:  cfg.BuildAssets.Components,
			Mode:        ScanMode(cfg.BuildAssets.Mode),
			Concurrency: cfg.BuildAssets.Concurrency,
			Logger:      logger.WithComponent(StageAutoEntry),
		},
		Injector: &ManifestInjector{
			Root:         root,
			ClientOutDir: cfg.Client.OutDir,
			Logger:       logger.WithComponent(StageInjectManifest),
		},
		Logger: logger,
	}

	if cfg.HotReload.Enabled {
		p.Hub = NewReloadHub()
		p.HotReload = &HotReload{
			Matcher:  NewMatcher(cfg.HotReload.Entry, cfg.HotReload.Ignore, root),
			Notifier: p.Hub,
			Logger:   logger.WithComponent(StageHotReload),
		}
	}

	p.Builder = &EsbuildBuilder{
		Root:     root,
		Injector: p.Injector,
		Minify:   cfg.Client.Minify,
		Logger:   logger.WithComponent(StageClientFirstBuild),
	}
	return p
}

// Stages lists the active stages.
func (p *Pipeline) Stages() []string {
	stages := []string{StageAutoEntry}
	if p.HotReload != nil {
		stages = append(stages, StageHotReload)
	}
	return append(stages, StageInjectManifest, StageClientFirstBuild)
}

// ConfigResolved merges detected entries into bc and points the injector at the
// resulting client output directory.
func (p *Pipeline) ConfigResolved(ctx context.Context, bc *BuildConfig) error {
	if _, err := p.Detector.Apply(ctx, bc); err != nil {
		return fmt.Errorf("detect entries: %w", err)
	}
	p.Injector.ClientOutDir = bc.ClientOutDir()
	return nil
}

// HandleHotUpdate reports whether file triggered a full reload.
func (p *Pipeline) HandleHotUpdate(file string) bool {
	return p.HotReload.HandleHotUpdate(file)
}

// Transform injects the client manifest into server code.
func (p *Pipeline) Transform(code string, ssr bool) (string, bool) {
	return p.Injector.Transform(code, ssr)
}

// Build resolves the build configuration and builds every environment, client first.
func (p *Pipeline) Build(ctx context.Context) (*BuildConfig, error) {
	bc := p.Config.BuildConfig()
	if err := p.ConfigResolved(ctx, bc); err != nil {
		return nil, err
	}
	if err := BuildApp(ctx, p.Builder, bc.Environments); err != nil {
		return nil, err
	}
	return bc, nil
}

// Resolver returns a resolver for pages served from this project. Production resolvers
// read the manifest from the client output directory.
func (p *Pipeline) Resolver() *Resolver {
	loader := NewManifestLoader(p.Config.Root)
	loader.Dir = filepath.ToSlash(filepath.Dir(filepath.Clean(p.Config.Client.OutDir)))
	loader.Cache = true
	loader.Logger = p.Logger.WithComponent("manifest")
	return &Resolver{
		Production: p.Config.Production,
		BaseURL:    p.Config.BaseURL,
		Loader:     loader,
		Strict:     p.Config.Strict,
		Logger:     p.Logger.WithComponent("resolve"),
	}
}
