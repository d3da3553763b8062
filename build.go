package vitessr

import (
	"context"
	"fmt"
)

// Builder builds one environment. The esbuild adapter is the production implementation.
type Builder interface {
	Build(ctx context.Context, env *Environment) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, env *Environment) error

func (f BuilderFunc) Build(ctx context.Context, env *Environment) error {
	return f(ctx, env)
}

// BuildApp builds the client environment first, then every other environment in
// declaration order, one at a time. Server builds read the client manifest, so the
// client must finish first.
func BuildApp(ctx context.Context, builder Builder, envs []*Environment) error {
	for _, env := range buildOrder(envs) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := builder.Build(ctx, env); err != nil {
			return fmt.Errorf("build %s: %w", env.Name, err)
		}
	}
	return nil
}

func buildOrder(envs []*Environment) []*Environment {
	ordered := make([]*Environment, 0, len(envs))
	for _, env := range envs {
		if env != nil && env.Name == ClientEnvironment {
			ordered = append(ordered, env)
			break
		}
	}
	for _, env := range envs {
		if env == nil || env.Name == ClientEnvironment {
			continue
		}
		ordered = append(ordered, env)
	}
	return ordered
}
