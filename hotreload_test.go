package vitessr

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []ReloadMessage
}

func (n *recordingNotifier) Send(msg ReloadMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []ReloadMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ReloadMessage(nil), n.msgs...)
}

func TestMatcherDefaults(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher(nil, nil, root)

	tests := []struct {
		file string
		want bool
	}{
		{filepath.Join(root, "src", "index.tsx"), true},
		{filepath.Join(root, "src", "pages", "home.ts"), true},
		{filepath.Join(root, "src", ".hidden.ts"), true},
		{filepath.Join(root, "public", "image.png"), false},
		{filepath.Join(root, "src", "style.css"), false},
		{"src/index.tsx", true},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.file), "Match(%q)", tt.file)
	}
}

func TestMatcherIgnore(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher([]string{"/src/**/*.tsx", "./app/*.ts"}, []string{"src/client/**"}, root)

	assert.True(t, m.Match(filepath.Join(root, "src", "index.tsx")))
	assert.True(t, m.Match(filepath.Join(root, "app", "server.ts")))
	assert.False(t, m.Match(filepath.Join(root, "src", "client", "app.tsx")))
	assert.False(t, m.Match(filepath.Join(root, "src", "util.ts")))
	assert.False(t, m.Match(filepath.Join(t.TempDir(), "src", "index.tsx")))

	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Match("src/index.tsx"))
}

func TestMatcherAbsolutePatterns(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher([]string{filepath.Join(root, "server", "**", "*.ts")}, nil, root)
	assert.True(t, m.Match(filepath.Join(root, "server", "routes", "api.ts")))
}

func TestHandleHotUpdate(t *testing.T) {
	root := t.TempDir()
	notifier := &recordingNotifier{}
	hot := &HotReload{Matcher: NewMatcher(nil, nil, root), Notifier: notifier}

	assert.True(t, hot.HandleHotUpdate(filepath.Join(root, "src", "index.tsx")))
	assert.False(t, hot.HandleHotUpdate(filepath.Join(root, "public", "image.png")))
	assert.False(t, hot.HandleHotUpdate(""))

	assert.Equal(t, []ReloadMessage{{Type: "full-reload", Path: "src/index.tsx"}}, notifier.messages())

	var nilHot *HotReload
	assert.False(t, nilHot.HandleHotUpdate("src/index.tsx"))
}

func TestReloadHubStreamsEvents(t *testing.T) {
	hub := NewReloadHub()
	hub.Keepalive = 0
	server := httptest.NewServer(hub)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Send(ReloadMessage{Type: "full-reload", Path: "src/index.tsx"})

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	assert.Equal(t, `data: {"type":"full-reload","path":"src/index.tsx"}`+"\n", line)

	cancel()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDevServerShutdownClosesStreams(t *testing.T) {
	hub := NewReloadHub()
	hub.Keepalive = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := httptest.NewUnstartedServer(hub)
	ts.Config = NewDevServer(ctx, "", hub)
	ts.Start()
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, ts.Config.Shutdown(shutdownCtx))
	assert.Equal(t, 0, hub.Clients())
}

func TestReloadHubSendWithoutClients(t *testing.T) {
	var hub ReloadHub
	hub.Send(ReloadMessage{Type: "full-reload"})
	assert.Equal(t, 0, hub.Clients())
}

func TestReloadHubClientTag(t *testing.T) {
	tag := string(NewReloadHub().ClientTag(DefaultReloadPath))
	assert.Contains(t, tag, `new EventSource("/__vite_ssr/reload")`)
	assert.Contains(t, tag, "location.reload()")
}

func TestWatchTriggersReload(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))

	notifier := &recordingNotifier{}
	hot := &HotReload{Matcher: NewMatcher(nil, nil, root), Notifier: notifier}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, root, hot) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, "node_modules", "pkg", "index.ts"), []byte("x"), 0644)
		_ = os.WriteFile(filepath.Join(root, "public.png"), []byte("x"), 0644)
		_ = os.WriteFile(filepath.Join(root, "src", "index.tsx"), []byte("export {}"), 0644)
		return len(notifier.messages()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	for _, msg := range notifier.messages() {
		assert.Equal(t, ReloadMessage{Type: "full-reload", Path: "src/index.tsx"}, msg)
	}
}
