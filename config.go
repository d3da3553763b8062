package vitessr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL     = "/"
	DefaultServerName  = "server"
	DefaultServerEntry = "src/index.tsx"
	DefaultDevAddr     = ":5173"
	DefaultReloadPath  = "/__vite_ssr/reload"
	DefaultConfigName  = "vite-ssr"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "pretty"
	EnvPrefix          = "VITE_SSR"
	defaultScanMode    = ScanAST
	defaultHotReload   = true
)

// Config is the file/env/flag configuration of a project.
type Config struct {
	Root        string            `mapstructure:"root"`
	Production  bool              `mapstructure:"production"`
	BaseURL     string            `mapstructure:"base_url"`
	Strict      bool              `mapstructure:"strict"`
	BuildAssets BuildAssetsConfig `mapstructure:"build_assets"`
	HotReload   HotReloadConfig   `mapstructure:"hot_reload"`
	Client      ClientConfig      `mapstructure:"client"`
	Server      ServerConfig      `mapstructure:"server"`
	Dev         DevConfig         `mapstructure:"dev"`
	Log         LogConfig         `mapstructure:"log"`
}

type BuildAssetsConfig struct {
	Patterns    []string          `mapstructure:"patterns"`
	Components  []ComponentMarker `mapstructure:"components"`
	Mode        string            `mapstructure:"mode"`
	Concurrency int               `mapstructure:"concurrency"`
}

type HotReloadConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Entry   []string `mapstructure:"entry"`
	Ignore  []string `mapstructure:"ignore"`
}

type ClientConfig struct {
	OutDir string `mapstructure:"out_dir"`
	Input  Input  `mapstructure:"input"`
	Minify bool   `mapstructure:"minify"`
}

type ServerConfig struct {
	Name   string `mapstructure:"name"`
	Entry  string `mapstructure:"entry"`
	OutDir string `mapstructure:"out_dir"`
}

type DevConfig struct {
	Addr       string `mapstructure:"addr"`
	ReloadPath string `mapstructure:"reload_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads defaults, an optional config file, and VITE_SSR_* variables into v.
// With an empty file, vite-ssr.yaml is looked up in the working directory and may be absent.
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		InputDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("production", DefaultProduction())
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("strict", false)

	v.SetDefault("build_assets.patterns", []string{DefaultEntryPattern})
	v.SetDefault("build_assets.mode", string(defaultScanMode))
	v.SetDefault("build_assets.concurrency", 0)

	v.SetDefault("hot_reload.enabled", defaultHotReload)
	v.SetDefault("hot_reload.entry", DefaultHotReloadEntry)
	v.SetDefault("hot_reload.ignore", []string{})

	v.SetDefault("client.out_dir", DefaultClientOutDir)
	v.SetDefault("client.minify", true)

	v.SetDefault("server.name", DefaultServerName)
	v.SetDefault("server.entry", DefaultServerEntry)
	v.SetDefault("server.out_dir", "")

	v.SetDefault("dev.addr", DefaultDevAddr)
	v.SetDefault("dev.reload_path", DefaultReloadPath)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Validate fills empty values with defaults and rejects unknown enumerations.
func (c *Config) Validate() error {
	if c.Root == "" {
		c.Root = "."
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	switch ScanMode(c.BuildAssets.Mode) {
	case "":
		c.BuildAssets.Mode = string(defaultScanMode)
	case ScanAST, ScanRegex:
	default:
		return fmt.Errorf("unknown scan mode %q", c.BuildAssets.Mode)
	}
	if len(c.BuildAssets.Components) == 0 {
		c.BuildAssets.Components = DefaultComponentMarkers
	}
	for _, m := range c.BuildAssets.Components {
		if m.Name == "" || m.Attribute == "" {
			return fmt.Errorf("component marker needs name and attribute: %+v", m)
		}
	}
	if c.Client.OutDir == "" {
		c.Client.OutDir = DefaultClientOutDir
	}
	if c.Server.Name == "" {
		c.Server.Name = DefaultServerName
	}
	if c.Server.Name == ClientEnvironment {
		return fmt.Errorf("server environment cannot be named %q", ClientEnvironment)
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = DefaultLogFormat
	case "pretty", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// BuildConfig returns the environments described by c: client first, then the server.
func (c *Config) BuildConfig() *BuildConfig {
	return &BuildConfig{
		Root: c.Root,
		Environments: []*Environment{
			{
				Name: ClientEnvironment,
				Build: BuildOptions{
					OutDir: c.Client.OutDir,
					Input:  c.Client.Input,
				},
			},
			{
				Name: c.Server.Name,
				Build: BuildOptions{
					OutDir: c.Server.OutDir,
					SSR:    c.Server.Entry,
				},
			},
		},
	}
}

// NewLoggerFromConfig builds the logger described by c.Log.
func NewLoggerFromConfig(c LogConfig) *Logger {
	level := c.Level
	if IsDebug() {
		level = "debug"
	}
	return NewLoggerWithOptions(LoggerOptions{Level: level, Format: c.Format})
}
