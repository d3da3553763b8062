package vitessr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingBuilder(order *[]string, fail map[string]error) Builder {
	return BuilderFunc(func(_ context.Context, env *Environment) error {
		*order = append(*order, env.Name)
		return fail[env.Name]
	})
}

func TestBuildAppBuildsClientFirst(t *testing.T) {
	envs := []*Environment{{Name: "ssr"}, {Name: "edge"}, {Name: ClientEnvironment}}

	var order []string
	require.NoError(t, BuildApp(context.Background(), recordingBuilder(&order, nil), envs))
	assert.Equal(t, []string{ClientEnvironment, "ssr", "edge"}, order)
}

func TestBuildAppWithoutClient(t *testing.T) {
	var order []string
	envs := []*Environment{{Name: "server"}, nil, {Name: "worker"}}
	require.NoError(t, BuildApp(context.Background(), recordingBuilder(&order, nil), envs))
	assert.Equal(t, []string{"server", "worker"}, order)
}

func TestBuildAppStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	envs := []*Environment{{Name: ClientEnvironment}, {Name: "server"}, {Name: "worker"}}

	var order []string
	err := BuildApp(context.Background(), recordingBuilder(&order, map[string]error{"server": boom}), envs)
	require.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "build server: boom")
	assert.Equal(t, []string{ClientEnvironment, "server"}, order)
}

func TestBuildAppClientFailureSkipsServer(t *testing.T) {
	envs := []*Environment{{Name: "server"}, {Name: ClientEnvironment}}

	var order []string
	err := BuildApp(context.Background(), recordingBuilder(&order, map[string]error{ClientEnvironment: ErrNoEntries}), envs)
	assert.ErrorIs(t, err, ErrNoEntries)
	assert.Equal(t, []string{ClientEnvironment}, order)
}

func TestBuildAppCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	builder := BuilderFunc(func(_ context.Context, env *Environment) error {
		order = append(order, env.Name)
		cancel()
		return nil
	})

	err := BuildApp(ctx, builder, []*Environment{{Name: ClientEnvironment}, {Name: "server"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{ClientEnvironment}, order)
}
