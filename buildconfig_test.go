package vitessr

import (
	"encoding/json"
	"testing"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEntries(t *testing.T) {
	tests := []struct {
		name     string
		existing Input
		entries  []string
		want     []string
	}{
		{"absent", Input{}, []string{"src/a.ts"}, []string{"src/a.ts"}},
		{"single", SingleInput("src/main.ts"), []string{"src/a.ts"}, []string{"src/main.ts", "src/a.ts"}},
		{"list", ListInput("src/x.ts", "src/y.ts"), []string{"src/a.ts"}, []string{"src/x.ts", "src/y.ts", "src/a.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEntries(tt.existing, tt.entries)
			assert.True(t, got.IsList())
			assert.Equal(t, tt.want, got.Values())
		})
	}
}

func TestMergeEntriesDoesNotAliasExisting(t *testing.T) {
	existing := ListInput("src/x.ts")
	_ = MergeEntries(existing, []string{"src/a.ts"})
	assert.Equal(t, []string{"src/x.ts"}, existing.Values())
}

func TestApplyEntries(t *testing.T) {
	cfg := &BuildConfig{Environments: []*Environment{
		{Name: DefaultServerName, Build: BuildOptions{SSR: "src/index.tsx"}},
	}}
	ApplyEntries(cfg, []string{"/src/client.tsx", "/src/style.css"})

	client := cfg.Environment(ClientEnvironment)
	require.NotNil(t, client)
	assert.Equal(t, DefaultClientOutDir, client.Build.OutDir)
	assert.True(t, client.Build.Manifest)
	assert.Equal(t, []string{"/src/client.tsx", "/src/style.css"}, client.Build.Input.Values())
	assert.Equal(t, "src/index.tsx", cfg.Environment(DefaultServerName).Build.SSR)
}

func TestApplyEntriesKeepsConfiguredOutDir(t *testing.T) {
	cfg := &BuildConfig{Environments: []*Environment{
		{Name: ClientEnvironment, Build: BuildOptions{OutDir: "build/web", Input: SingleInput("src/main.ts")}},
	}}
	ApplyEntries(cfg, []string{"/src/client.tsx"})

	client := cfg.Environment(ClientEnvironment)
	assert.Equal(t, "build/web", client.Build.OutDir)
	assert.Equal(t, "build/web", cfg.ClientOutDir())
	assert.Equal(t, []string{"src/main.ts", "/src/client.tsx"}, client.Build.Input.Values())
}

func TestApplyEntriesWithoutEntriesLeavesConfig(t *testing.T) {
	cfg := &BuildConfig{Environments: []*Environment{{Name: DefaultServerName}}}
	ApplyEntries(cfg, nil)

	assert.Nil(t, cfg.Environment(ClientEnvironment))
	assert.Len(t, cfg.Environments, 1)
	assert.Equal(t, DefaultClientOutDir, cfg.ClientOutDir())

	ApplyEntries(nil, []string{"/src/a.ts"})
}

func TestInputJSON(t *testing.T) {
	tests := []struct {
		doc    string
		isList bool
		values []string
	}{
		{`"src/main.ts"`, false, []string{"src/main.ts"}},
		{`["a.ts","b.ts"]`, true, []string{"a.ts", "b.ts"}},
		{`null`, false, nil},
	}
	for _, tt := range tests {
		var in Input
		require.NoError(t, json.Unmarshal([]byte(tt.doc), &in), tt.doc)
		assert.Equal(t, tt.isList, in.IsList(), tt.doc)
		assert.Equal(t, tt.values, in.Values(), tt.doc)

		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, tt.doc, string(data))
	}

	var in Input
	assert.Error(t, json.Unmarshal([]byte(`42`), &in))
	assert.Error(t, json.Unmarshal([]byte(`["a", 1]`), &in))
}

func TestInputDecodeHook(t *testing.T) {
	var out struct {
		One  Input `mapstructure:"one"`
		Many Input `mapstructure:"many"`
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: InputDecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)
	require.NoError(t, dec.Decode(map[string]any{
		"one":  "src/main.ts",
		"many": []any{"src/a.ts", "src/b.ts"},
	}))

	assert.False(t, out.One.IsList())
	assert.Equal(t, []string{"src/main.ts"}, out.One.Values())
	assert.True(t, out.Many.IsList())
	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, out.Many.Values())
}

func TestEnsureEnvironment(t *testing.T) {
	cfg := &BuildConfig{}
	first := cfg.EnsureEnvironment("edge")
	second := cfg.EnsureEnvironment("edge")
	assert.Same(t, first, second)
	assert.Len(t, cfg.Environments, 1)

	var nilCfg *BuildConfig
	assert.Nil(t, nilCfg.Environment("edge"))
}
