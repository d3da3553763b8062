package vitessr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/go-viper/mapstructure/v2"
)

// ClientEnvironment is the environment that produces the browser bundle and manifest.
const ClientEnvironment = "client"

// DefaultClientOutDir is used when a client environment has no output directory.
const DefaultClientOutDir = "dist/client"

// Input is a bundler input field: absent, a single path, or a list of paths.
type Input struct {
	single string
	list   []string
	isList bool
}

func SingleInput(p string) Input {
	return Input{single: p}
}

func ListInput(paths ...string) Input {
	return Input{list: slices.Clone(paths), isList: true}
}

// IsZero reports whether the input is absent.
func (i Input) IsZero() bool {
	return !i.isList && i.single == ""
}

func (i Input) IsList() bool {
	return i.isList
}

// Values returns the input as a list.
func (i Input) Values() []string {
	if i.isList {
		return slices.Clone(i.list)
	}
	if i.single != "" {
		return []string{i.single}
	}
	return nil
}

func (i Input) MarshalJSON() ([]byte, error) {
	switch {
	case i.isList:
		return json.Marshal(i.list)
	case i.single != "":
		return json.Marshal(i.single)
	default:
		return []byte("null"), nil
	}
}

func (i *Input) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in, err := inputFromValue(raw)
	if err != nil {
		return err
	}
	*i = in
	return nil
}

func inputFromValue(v any) (Input, error) {
	switch val := v.(type) {
	case nil:
		return Input{}, nil
	case string:
		return SingleInput(val), nil
	case []string:
		return ListInput(val...), nil
	case []any:
		paths := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Input{}, fmt.Errorf("input entries must be strings, got %T", item)
			}
			paths = append(paths, s)
		}
		return ListInput(paths...), nil
	default:
		return Input{}, fmt.Errorf("input must be a string or list, got %T", v)
	}
}

// InputDecodeHook lets mapstructure (and viper) decode strings and lists into Input.
func InputDecodeHook() mapstructure.DecodeHookFuncType {
	inputType := reflect.TypeOf(Input{})
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != inputType {
			return data, nil
		}
		return inputFromValue(data)
	}
}

// MergeEntries combines an existing input with detected entries. Existing values come first.
func MergeEntries(existing Input, entries []string) Input {
	if existing.IsZero() {
		return ListInput(entries...)
	}
	return ListInput(append(existing.Values(), entries...)...)
}

// BuildOptions is the per-environment build configuration.
type BuildOptions struct {
	OutDir   string `json:"outDir,omitempty"`
	Manifest bool   `json:"manifest,omitempty"`
	Input    Input  `json:"input"`
	// SSR is the server entry for non-client environments.
	SSR string `json:"ssr,omitempty"`
	// Platform is "browser", "node" or "neutral". Empty picks browser for the
	// client and node for everything else.
	Platform string `json:"platform,omitempty"`
}

// Environment is one named build target.
type Environment struct {
	Name  string       `json:"name"`
	Build BuildOptions `json:"build"`
}

// BuildConfig lists the environments in the order they were declared.
type BuildConfig struct {
	Root         string         `json:"root,omitempty"`
	Environments []*Environment `json:"environments"`
}

// Environment returns the named environment or nil.
func (c *BuildConfig) Environment(name string) *Environment {
	if c == nil {
		return nil
	}
	for _, env := range c.Environments {
		if env != nil && env.Name == name {
			return env
		}
	}
	return nil
}

// EnsureEnvironment returns the named environment, appending an empty one when missing.
func (c *BuildConfig) EnsureEnvironment(name string) *Environment {
	if env := c.Environment(name); env != nil {
		return env
	}
	env := &Environment{Name: name}
	c.Environments = append(c.Environments, env)
	return env
}

// ClientOutDir is the client output directory, defaulted.
func (c *BuildConfig) ClientOutDir() string {
	if env := c.Environment(ClientEnvironment); env != nil && env.Build.OutDir != "" {
		return env.Build.OutDir
	}
	return DefaultClientOutDir
}

// ApplyEntries wires detected entries into the client environment. With no entries the
// configuration is left untouched.
func ApplyEntries(cfg *BuildConfig, entries []string) {
	if cfg == nil || len(entries) == 0 {
		return
	}
	client := cfg.EnsureEnvironment(ClientEnvironment)
	if client.Build.OutDir == "" {
		client.Build.OutDir = DefaultClientOutDir
	}
	client.Build.Manifest = true
	client.Build.Input = MergeEntries(client.Build.Input, entries)
}
