package vitessr

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"
)

// DefaultHotReloadEntry is watched when no entry patterns are configured.
var DefaultHotReloadEntry = []string{"src/**/*.ts", "src/**/*.tsx"}

// Matcher decides whether a changed file is server-rendered source.
type Matcher struct {
	root    string
	entries []string
	ignores []string
}

// NewMatcher normalizes the patterns against root. Dotfiles match like any other file.
func NewMatcher(entry []string, ignore []string, root string) *Matcher {
	if len(entry) == 0 {
		entry = DefaultHotReloadEntry
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Matcher{
		root:    root,
		entries: NormalizeGlobPatterns(entry, root),
		ignores: NormalizeGlobPatterns(ignore, root),
	}
}

// Match reports whether file is matched by an entry pattern and no ignore pattern.
func (m *Matcher) Match(file string) bool {
	if m == nil || file == "" {
		return false
	}
	rel := RelativeToRoot(m.root, file)
	return matchAny(m.entries, rel) && !matchAny(m.ignores, rel)
}

// ReloadMessage is what connected browsers receive.
type ReloadMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Notifier delivers reload messages to clients.
type Notifier interface {
	Send(msg ReloadMessage)
}

// HotReload turns changes of matched files into full page reloads.
type HotReload struct {
	Matcher  *Matcher
	Notifier Notifier
	Logger   *Logger
}

// HandleHotUpdate returns true when the change was handled by a full reload and no
// module-level update should follow.
func (h *HotReload) HandleHotUpdate(file string) bool {
	if h == nil || file == "" || !h.Matcher.Match(file) {
		return false
	}
	loggerOrNop(h.Logger).Debug("full reload: " + FormatPath(file))
	if h.Notifier != nil {
		h.Notifier.Send(ReloadMessage{Type: "full-reload", Path: RelativeToRoot(h.Matcher.root, file)})
	}
	return true
}

// ReloadHub broadcasts reload messages to browsers over server-sent events.
type ReloadHub struct {
	mu      sync.Mutex
	clients map[chan ReloadMessage]struct{}
	// Keepalive is the interval between comment pings. Zero disables them.
	Keepalive time.Duration
}

func NewReloadHub() *ReloadHub {
	return &ReloadHub{
		clients:   make(map[chan ReloadMessage]struct{}),
		Keepalive: 5 * time.Second,
	}
}

// Send delivers msg to every connected client. Slow clients drop messages rather than
// block the sender.
func (h *ReloadHub) Send(msg ReloadMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of connected browsers.
func (h *ReloadHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ReloadHub) subscribe() chan ReloadMessage {
	ch := make(chan ReloadMessage, 1)
	h.mu.Lock()
	if h.clients == nil {
		h.clients = make(map[chan ReloadMessage]struct{})
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *ReloadHub) unsubscribe(ch chan ReloadMessage) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	var tick <-chan time.Time
	if h.Keepalive > 0 {
		ticker := time.NewTicker(h.Keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg := <-ch:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-tick:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// NewDevServer returns a server whose request contexts end with ctx. Open reload
// streams return as soon as ctx is done instead of holding up Shutdown.
func NewDevServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

const reloadClientScript = `<script type="module">
const source = new EventSource(%q);
source.onmessage = (event) => {
  const msg = JSON.parse(event.data);
  if (msg.type === 'full-reload') location.reload();
};
</script>`

// ClientTag is the script browsers need to follow reloads served at endpoint.
func (h *ReloadHub) ClientTag(endpoint string) template.HTML {
	return template.HTML(fmt.Sprintf(reloadClientScript, endpoint))
}
