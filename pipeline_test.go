package vitessr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, root string) *Config {
	t.Helper()
	cfg := &Config{
		Root:        root,
		BuildAssets: BuildAssetsConfig{Patterns: []string{DefaultEntryPattern}},
		HotReload:   HotReloadConfig{Enabled: true},
		Server:      ServerConfig{Entry: DefaultServerEntry},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipelineStages(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	p := NewPipeline(cfg, nil)
	assert.Equal(t, []string{StageAutoEntry, StageHotReload, StageInjectManifest, StageClientFirstBuild}, p.Stages())
	require.NotNil(t, p.Hub)

	cfg.HotReload.Enabled = false
	p = NewPipeline(cfg, nil)
	assert.Equal(t, []string{StageAutoEntry, StageInjectManifest, StageClientFirstBuild}, p.Stages())
	assert.Nil(t, p.HotReload)
	assert.False(t, p.HandleHotUpdate(filepath.Join(cfg.Root, "src", "index.tsx")))
}

func TestPipelineHandleHotUpdate(t *testing.T) {
	root := t.TempDir()
	p := NewPipeline(testConfig(t, root), nil)
	p.Hub = nil
	notifier := &recordingNotifier{}
	p.HotReload.Notifier = notifier

	assert.True(t, p.HandleHotUpdate(filepath.Join(root, "src", "index.tsx")))
	assert.False(t, p.HandleHotUpdate(filepath.Join(root, "public", "image.png")))
	assert.Len(t, notifier.messages(), 1)
}

func TestPipelineConfigResolvedWithoutEntries(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.tsx": "export default () => <main />\n",
	})
	p := NewPipeline(testConfig(t, root), nil)

	bc := &BuildConfig{Environments: []*Environment{{Name: DefaultServerName}}}
	require.NoError(t, p.ConfigResolved(context.Background(), bc))
	assert.Nil(t, bc.Environment(ClientEnvironment))
	assert.Equal(t, DefaultClientOutDir, p.Injector.ClientOutDir)
}

func TestPipelineBuild(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/client.tsx": "console.log('hydrate')\n",
		"src/style.css":  "body { margin: 0 }\n",
		"src/index.tsx": `import { Script, Link } from 'vite-ssr-components/react'
export const manifest = "__VITE_MANIFEST_CONTENT__"
export default () => (
  <html>
    <head>
      <Script src="/src/client.tsx" />
      <Link href="/src/style.css" rel="stylesheet" />
    </head>
  </html>
)
`,
	})
	cfg := testConfig(t, root)
	cfg.Production = true

	p := NewPipeline(cfg, nil)
	bc, err := p.Build(context.Background())
	require.NoError(t, err)

	client := bc.Environment(ClientEnvironment)
	require.NotNil(t, client)
	assert.Equal(t, []string{"/src/client.tsx", "/src/style.css"}, client.Build.Input.Values())
	assert.True(t, client.Build.Manifest)

	resolver := p.Resolver()
	asset, ok := resolver.ResolveSrc("/src/client.tsx")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(asset.URL, "/assets/client-"))

	href, ok := resolver.ResolveHref("/src/style.css")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(href, "/assets/style-"))

	server, err := os.ReadFile(filepath.Join(root, "dist", DefaultServerName, "index.js"))
	require.NoError(t, err)
	assert.NotContains(t, string(server), "__VITE_MANIFEST_CONTENT__")
	assert.Contains(t, string(server), strings.TrimPrefix(asset.URL, "/"))
}
